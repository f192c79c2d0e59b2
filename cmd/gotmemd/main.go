// Command gotmemd serves the localization retrieval API: cached translation
// lookups, correction ingestion, similarity search and an observability
// endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ZaguanLabs/gotmem"
	"github.com/ZaguanLabs/gotmem/cache"
	"github.com/ZaguanLabs/gotmem/provider"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := loadConfig()

	// Distributed tier is optional: without Redis the service runs with a
	// local-only cache and an in-process memory.
	var store *cache.RedisStore
	if cfg.redisURL != "" {
		s, err := cache.NewRedisStore(cache.RedisConfig{URL: cfg.redisURL})
		if err != nil {
			logger.Warn("redis unavailable, running local-only", "error", err)
		} else {
			store = s
			defer store.Close()
		}
	}

	memOpts := []gotmem.MemoryOption{gotmem.WithMemoryLogger(logger)}
	if store != nil {
		memOpts = append(memOpts, gotmem.WithUnitStore(store))
	}
	memory := gotmem.NewMemory(memOpts...)

	if store != nil {
		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := memory.Load(loadCtx); err != nil {
			logger.Warn("rehydrating translation memory failed", "error", err)
		} else {
			logger.Info("translation memory loaded", "units", memory.Len())
		}
		cancel()
	}

	cacheOpts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithDefaults(cache.Options{TTL: cfg.cacheTTL, StaleWindow: cfg.staleWindow}),
	}
	if store != nil {
		cacheOpts = append(cacheOpts, cache.WithStore(store))
	}
	tiers := cache.New(cacheOpts...)

	var gen gotmem.Provider
	if cfg.openAIKey != "" {
		gen = provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey: cfg.openAIKey,
			Model:  cfg.openAIModel,
		})
		gen = gotmem.NewRetryableProvider(gen, gotmem.DefaultRetryConfig())
		gen = gotmem.NewRateLimitedProvider(gen, gotmem.RateLimitConfig{RequestsPerMinute: cfg.providerRPM})
	} else {
		logger.Warn("no OPENAI_API_KEY set, using mock provider")
		gen = provider.NewMockProvider()
	}

	translator := gotmem.NewTranslator(memory, gen,
		gotmem.WithCache(tiers),
		gotmem.WithSourceLang(cfg.sourceLang),
		gotmem.WithMinConfidence(cfg.minConfidence),
		gotmem.WithCacheTTL(cfg.cacheTTL, cfg.staleWindow),
		gotmem.WithTranslatorLogger(logger),
	)

	janitor := gotmem.NewJanitor(memory, gotmem.CleanupConfig{Interval: cfg.cleanupInterval}, logger)
	janitor.Start()
	defer janitor.Stop()

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           newRouter(translator, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gotmemd listening", "addr", cfg.addr, "version", gotmem.FullVersion())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}

type config struct {
	addr            string
	redisURL        string
	openAIKey       string
	openAIModel     string
	sourceLang      string
	minConfidence   float64
	providerRPM     int
	cacheTTL        time.Duration
	staleWindow     time.Duration
	cleanupInterval time.Duration
}

func loadConfig() config {
	return config{
		addr:            envStr("GOTMEMD_ADDR", ":8080"),
		redisURL:        envStr("REDIS_URL", ""),
		openAIKey:       envStr("OPENAI_API_KEY", ""),
		openAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		sourceLang:      envStr("SOURCE_LANG", "en"),
		minConfidence:   envFloat("MIN_CONFIDENCE", 0.75),
		providerRPM:     envInt("PROVIDER_RPM", 60),
		cacheTTL:        envDuration("CACHE_TTL", time.Hour),
		staleWindow:     envDuration("STALE_WINDOW", 10*time.Minute),
		cleanupInterval: envDuration("CLEANUP_INTERVAL", 24*time.Hour),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

type server struct {
	translator *gotmem.Translator
	logger     *slog.Logger
}

func newRouter(translator *gotmem.Translator, logger *slog.Logger) http.Handler {
	s := &server{translator: translator, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/translate", s.handleTranslate)
	r.Post("/v1/corrections", s.handleCorrection)
	r.Get("/v1/similar", s.handleSimilar)
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleHealth)

	return r
}

type translateRequest struct {
	Text       string          `json:"text"`
	TargetLang string          `json:"target_lang"`
	Context    *gotmem.Context `json:"context,omitempty"`
}

func (s *server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "text and target_lang are required")
		return
	}

	match, err := s.translator.Translate(r.Context(), req.Text, req.TargetLang, req.Context)
	if err != nil {
		s.logger.Error("translate failed", "error", err)
		writeError(w, http.StatusBadGateway, "translation failed")
		return
	}
	if match == nil {
		writeError(w, http.StatusNotFound, "no match")
		return
	}

	writeJSON(w, http.StatusOK, match)
}

type correctionRequest struct {
	Original   string          `json:"original"`
	Corrected  string          `json:"corrected"`
	TargetLang string          `json:"target_lang"`
	Context    *gotmem.Context `json:"context,omitempty"`
}

func (s *server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Original == "" || req.Corrected == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "original, corrected and target_lang are required")
		return
	}

	unit, err := s.translator.Correct(r.Context(), req.Original, req.Corrected, req.TargetLang, req.Context)
	if err != nil {
		// The correction is in memory; only persistence lagged.
		s.logger.Warn("correction persisted with errors", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hash":        unit.Hash,
		"provenance":  unit.Provenance,
		"usage_count": unit.UsageCount,
		"corrections": len(unit.Corrections),
	})
}

func (s *server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("text")
	lang := q.Get("lang")
	if text == "" || lang == "" {
		writeError(w, http.StatusBadRequest, "text and lang are required")
		return
	}

	threshold := 0.6
	if v := q.Get("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = f
		}
	}
	maxResults := 10
	if v := q.Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxResults = n
		}
	}

	candidates, err := s.translator.Memory().FindSimilarTranslations(r.Context(), text, lang, threshold, maxResults)
	if err != nil {
		s.logger.Error("similarity search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.translator.Stats(r.Context()))
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": gotmem.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
