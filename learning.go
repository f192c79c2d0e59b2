package gotmem

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LearnFromCorrection ingests a human correction: the unit for original is
// upserted, the correction is appended to its history, provenance becomes
// human, usage is counted and the corrected text feeds the relevance corpus.
// An immediate FuzzyTranslate for the same text returns the correction with
// confidence 1.0.
func (m *Memory) LearnFromCorrection(ctx context.Context, original, corrected, targetLang string, tctx *Context) (*TranslationUnit, error) {
	lang := NormalizeLocale(targetLang)

	record := &CorrectionRecord{
		ID:            uuid.NewString(),
		OriginalText:  original,
		CorrectedText: corrected,
		TargetLang:    lang,
		Context:       tctx,
		Timestamp:     time.Now(),
	}

	unit := m.upsert(original, lang, corrected, ProvenanceHuman, record)
	m.corpus.Add(corrected)

	if err := m.persist(ctx, unit); err != nil {
		return unit, err
	}
	return unit, nil
}

// CleanupConfig controls retention of translation units.
type CleanupConfig struct {
	MaxAge            time.Duration // prune units not used for this long
	MinUsage          int           // ...and used fewer times than this
	VerifiedAgeFactor float64       // multiplier on MaxAge for human-verified units
	Interval          time.Duration // how often the janitor runs
}

// DefaultCleanupConfig returns the default retention policy.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		MaxAge:            180 * 24 * time.Hour,
		MinUsage:          3,
		VerifiedAgeFactor: 3,
		Interval:          24 * time.Hour,
	}
}

// Cleanup removes units whose last use is older than cfg.MaxAge and whose
// usage count is below cfg.MinUsage. Human-verified units get a stretched
// age threshold so corrections outlive generated filler. Returns the number
// of units removed.
func (m *Memory) Cleanup(ctx context.Context, cfg CleanupConfig) (int, error) {
	if cfg.MaxAge <= 0 {
		return 0, nil
	}
	factor := cfg.VerifiedAgeFactor
	if factor < 1 {
		factor = 1
	}

	now := time.Now()

	m.mu.Lock()
	var removed []string
	for hash, unit := range m.units {
		maxAge := cfg.MaxAge
		if unit.Provenance == ProvenanceHuman {
			maxAge = time.Duration(float64(maxAge) * factor)
		}
		if now.Sub(unit.LastUsedAt) > maxAge && unit.UsageCount < cfg.MinUsage {
			delete(m.units, hash)
			removed = append(removed, hash)
		}
	}
	m.mu.Unlock()

	if len(removed) == 0 || m.store == nil {
		return len(removed), nil
	}

	keys := make([]string, len(removed))
	for i, hash := range removed {
		keys[i] = UnitKey(hash)
	}
	if err := m.store.Delete(ctx, keys...); err != nil {
		// In-memory state is already pruned; the orphaned keys are retried
		// implicitly because Load discards what the memory no longer wants.
		return len(removed), &StoreError{Op: "delete", Message: "pruning units", Cause: err}
	}

	return len(removed), nil
}

// Janitor runs Memory.Cleanup on a schedule, independent of request
// handling. It is owned by the process lifecycle: Start on boot, Stop on
// teardown. Cleanup failures are logged and retried on the next tick.
type Janitor struct {
	memory *Memory
	cfg    CleanupConfig
	logger *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewJanitor creates a janitor for the given memory. Zero config fields fall
// back to DefaultCleanupConfig values.
func NewJanitor(memory *Memory, cfg CleanupConfig, logger *slog.Logger) *Janitor {
	def := DefaultCleanupConfig()
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.MinUsage <= 0 {
		cfg.MinUsage = def.MinUsage
	}
	if cfg.VerifiedAgeFactor <= 0 {
		cfg.VerifiedAgeFactor = def.VerifiedAgeFactor
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		memory: memory,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the cleanup loop.
func (j *Janitor) Start() {
	go j.run()
}

// Stop halts the loop and waits for an in-flight cleanup to finish.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

func (j *Janitor) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			removed, err := j.memory.Cleanup(ctx, j.cfg)
			cancel()

			if err != nil {
				j.logger.Warn("translation memory cleanup failed", "removed", removed, "error", err)
				continue
			}
			if removed > 0 {
				j.logger.Info("translation memory cleanup", "removed", removed)
			}
		}
	}
}
