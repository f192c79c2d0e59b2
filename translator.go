package gotmem

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZaguanLabs/gotmem/cache"
)

// Provider is the interface for generation fallback backends, invoked when
// no memory match clears the confidence bar.
type Provider interface {
	Translate(ctx context.Context, req TranslateRequest) ([]string, error)
}

// TranslateRequest contains the parameters for a generation request.
type TranslateRequest struct {
	Texts         []string
	TargetLang    string
	SourceLang    string
	Context       string   // rendered context hint (see Context.Hint)
	TextContexts  []string // optional per-text hints
	ExcludedTerms []string
	Glossary      map[string]string
}

// Translator ties the retrieval pipeline together: multi-tier cache in
// front, translation memory behind it, generation provider as the last
// resort, with generated output remembered for next time.
type Translator struct {
	memory   *Memory
	provider Provider // may be nil: memory-only operation
	cache    *cache.MultiTierCache

	sourceLang          string
	minConfidence       float64
	generatedConfidence float64
	ttl                 time.Duration
	staleWindow         time.Duration
	glossary            map[string]string
	excludedTerms       []string
	logger              *slog.Logger
}

// TranslatorOption is a functional option for configuring the Translator.
type TranslatorOption func(*Translator)

// WithCache puts a multi-tier cache in front of memory lookups.
func WithCache(c *cache.MultiTierCache) TranslatorOption {
	return func(t *Translator) {
		t.cache = c
	}
}

// WithSourceLang sets the source language (default "en").
func WithSourceLang(lang string) TranslatorOption {
	return func(t *Translator) {
		t.sourceLang = lang
	}
}

// WithMinConfidence sets the reuse threshold for fuzzy matches (default 0.75).
func WithMinConfidence(min float64) TranslatorOption {
	return func(t *Translator) {
		t.minConfidence = min
	}
}

// WithGeneratedConfidence sets the confidence reported for provider output
// (default 0.8). Generated text has no similarity evidence behind it, so
// this is a policy knob, not a measurement.
func WithGeneratedConfidence(confidence float64) TranslatorOption {
	return func(t *Translator) {
		t.generatedConfidence = confidence
	}
}

// WithCacheTTL sets the freshness and stale-serving windows for cached
// translations (defaults: 1h fresh, 10m stale).
func WithCacheTTL(ttl, staleWindow time.Duration) TranslatorOption {
	return func(t *Translator) {
		t.ttl = ttl
		t.staleWindow = staleWindow
	}
}

// WithGlossary sets preferred translations passed to the provider.
func WithGlossary(glossary map[string]string) TranslatorOption {
	return func(t *Translator) {
		t.glossary = glossary
	}
}

// WithExcludedTerms sets terms the provider must never translate.
func WithExcludedTerms(terms []string) TranslatorOption {
	return func(t *Translator) {
		t.excludedTerms = terms
	}
}

// WithTranslatorLogger sets the logger.
func WithTranslatorLogger(logger *slog.Logger) TranslatorOption {
	return func(t *Translator) {
		t.logger = logger
	}
}

// NewTranslator creates a translator over the given memory. provider may be
// nil, in which case unmatched lookups return no match instead of falling
// back to generation.
func NewTranslator(memory *Memory, provider Provider, opts ...TranslatorOption) *Translator {
	t := &Translator{
		memory:              memory,
		provider:            provider,
		sourceLang:          "en",
		minConfidence:       0.75,
		generatedConfidence: 0.8,
		ttl:                 time.Hour,
		staleWindow:         10 * time.Minute,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = slog.Default()
	}

	return t
}

// Translate resolves text into targetLang: cached result, memory match, or
// generated fallback, in that order. A nil match with a nil error means no
// source could produce a translation (memory missed and no provider is
// configured).
func (t *Translator) Translate(ctx context.Context, text, targetLang string, tctx *Context) (*TranslationMatch, error) {
	lang := NormalizeLocale(targetLang)

	if BaseLang(lang) == BaseLang(t.sourceLang) {
		return &TranslationMatch{
			Text:       text,
			TargetLang: lang,
			Confidence: 1.0,
			Source:     SourcePassthrough,
		}, nil
	}

	fetch := func(fctx context.Context) (*TranslationMatch, error) {
		return t.lookup(fctx, text, lang, tctx)
	}

	// Without a provider a lookup can legitimately produce nothing; skip
	// the cache so a later correction is visible immediately.
	if t.cache == nil || t.provider == nil {
		return fetch(ctx)
	}

	opts := cache.Options{
		TTL:         t.ttl,
		StaleWindow: t.staleWindow,
		Tags:        []string{"lang:" + lang},
		ContextKey:  ContextDigest(tctx),
	}

	return cache.GetOrSet(ctx, t.cache, translationKey(text, lang), fetch, opts)
}

// Correct ingests a human correction and invalidates every cached variant of
// the corrected text so the next read observes it.
func (t *Translator) Correct(ctx context.Context, original, corrected, targetLang string, tctx *Context) (*TranslationUnit, error) {
	lang := NormalizeLocale(targetLang)

	unit, err := t.memory.LearnFromCorrection(ctx, original, corrected, lang, tctx)
	if err != nil {
		return unit, err
	}

	if t.cache != nil {
		t.cache.InvalidateByPattern(ctx, translationKey(original, lang)+"*")
	}
	return unit, nil
}

// Memory returns the underlying translation memory.
func (t *Translator) Memory() *Memory {
	return t.memory
}

// SourceLang returns the source language.
func (t *Translator) SourceLang() string {
	return t.sourceLang
}

// TranslatorStats is the observability snapshot of the whole pipeline.
type TranslatorStats struct {
	Cache       cache.Stats `json:"cache"`
	MemoryUnits int         `json:"memory_units"`
	CorpusDocs  int         `json:"corpus_docs"`
}

// Stats reports pipeline statistics; it never fails.
func (t *Translator) Stats(ctx context.Context) TranslatorStats {
	stats := TranslatorStats{
		MemoryUnits: t.memory.Len(),
		CorpusDocs:  t.memory.CorpusSize(),
	}
	if t.cache != nil {
		stats.Cache = t.cache.Stats(ctx)
	}
	return stats
}

// lookup is the uncached resolution path: memory first, then generation.
func (t *Translator) lookup(ctx context.Context, text, lang string, tctx *Context) (*TranslationMatch, error) {
	match, err := t.memory.FuzzyTranslate(ctx, text, lang, tctx, t.minConfidence)
	if err != nil || match != nil {
		return match, err
	}

	if t.provider == nil {
		return nil, nil
	}

	results, err := t.provider.Translate(ctx, TranslateRequest{
		Texts:         []string{text},
		TargetLang:    lang,
		SourceLang:    t.sourceLang,
		Context:       tctx.Hint(),
		Glossary:      t.glossary,
		ExcludedTerms: t.excludedTerms,
	})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, &CountMismatchError{Expected: 1, Got: len(results)}
	}

	translated := results[0]

	unit, rememberErr := t.memory.Remember(ctx, text, lang, translated, ProvenanceGenerated)
	if rememberErr != nil {
		// Memory keeps the unit in-process; only the write-through failed.
		t.logger.Warn("persisting generated translation failed", "error", rememberErr)
	}

	return &TranslationMatch{
		Text:       translated,
		TargetLang: lang,
		Confidence: t.generatedConfidence,
		Source:     SourceGenerated,
		UnitHash:   unit.Hash,
	}, nil
}

func translationKey(text, lang string) string {
	return "tr:" + CacheKey(HashText(text), lang)
}
