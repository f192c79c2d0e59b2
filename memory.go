package gotmem

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// UnitStore is the persistence contract Memory needs from a backing store:
// plain reads and writes plus pattern scans. cache.RedisStore satisfies it.
// A nil store means the memory is purely in-process.
type UnitStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// MemoryConfig holds the tunable matching parameters. All weights default to
// the values the original service shipped with; they are deliberately
// configuration, not constants, so they can be tuned against labeled data.
type MemoryConfig struct {
	SimilarityWeights SimilarityWeights
	ConfidenceWeights ConfidenceWeights
	MinSimilarity     float64 // fuzzy pre-filter threshold
	RankSimilarity    float64 // weight of similarity in candidate ranking
	RankConfidence    float64 // weight of confidence in candidate ranking
	ScoreConcurrency  int     // goroutines used to score fuzzy candidates
}

// DefaultMemoryConfig returns the default matching parameters.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		SimilarityWeights: DefaultSimilarityWeights(),
		ConfidenceWeights: DefaultConfidenceWeights(),
		MinSimilarity:     0.6,
		RankSimilarity:    0.7,
		RankConfidence:    0.3,
		ScoreConcurrency:  4,
	}
}

// scoreParallelThreshold is the candidate count above which fuzzy scoring
// fans out across goroutines.
const scoreParallelThreshold = 16

// Memory is the translation memory store: exact-match then fuzzy lookup over
// stored translation units, ranked by similarity and confidence. It owns the
// TranslationUnit lifecycle; the learning loop mutates only through its API.
type Memory struct {
	mu     sync.RWMutex
	units  map[string]*TranslationUnit // keyed by normalized-text hash
	corpus *Corpus
	engine *SimilarityEngine
	scorer *ConfidenceScorer

	store   UnitStore
	adapter *Adapter
	cfg     MemoryConfig
	logger  *slog.Logger
}

// MemoryOption is a functional option for configuring Memory.
type MemoryOption func(*Memory)

// WithUnitStore sets a persistence backend. Units are written through on
// every mutation and can be rehydrated with Load.
func WithUnitStore(store UnitStore) MemoryOption {
	return func(m *Memory) {
		m.store = store
	}
}

// WithMemoryConfig overrides the matching parameters.
func WithMemoryConfig(cfg MemoryConfig) MemoryOption {
	return func(m *Memory) {
		m.cfg = cfg
	}
}

// WithAdapter sets the context adaptation rules applied to fuzzy matches.
func WithAdapter(adapter *Adapter) MemoryOption {
	return func(m *Memory) {
		m.adapter = adapter
	}
}

// WithMemoryLogger sets the logger for degraded-path reporting.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		m.logger = logger
	}
}

// NewMemory creates an empty translation memory.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		units:   make(map[string]*TranslationUnit),
		corpus:  NewCorpus(),
		adapter: NewAdapter(),
		cfg:     DefaultMemoryConfig(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.cfg.MinSimilarity == 0 {
		m.cfg.MinSimilarity = 0.6
	}
	if m.cfg.RankSimilarity == 0 && m.cfg.RankConfidence == 0 {
		m.cfg.RankSimilarity, m.cfg.RankConfidence = 0.7, 0.3
	}
	if m.cfg.ScoreConcurrency <= 0 {
		m.cfg.ScoreConcurrency = 4
	}

	m.engine = NewSimilarityEngine(m.cfg.SimilarityWeights)
	m.scorer = NewConfidenceScorer(m.cfg.ConfidenceWeights, m.corpus)

	return m
}

// Load rehydrates units from the persistence backend. Human-verified
// translations are re-indexed into the corpus. A nil store is a no-op.
func (m *Memory) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	keys, err := m.store.Keys(ctx, UnitKeyPattern)
	if err != nil {
		return &StoreError{Op: "scan", Key: UnitKeyPattern, Message: "listing units", Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		data, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return &StoreError{Op: "get", Key: key, Message: "reading unit", Cause: err}
		}
		if !ok {
			continue
		}

		var unit TranslationUnit
		if err := json.Unmarshal(data, &unit); err != nil {
			// Corrupt payload: drop it rather than poison the memory.
			m.logger.Warn("discarding corrupt translation unit", "key", key, "error", err)
			continue
		}
		if unit.Translations == nil {
			unit.Translations = make(map[string]string)
		}
		m.units[unit.Hash] = &unit

		if unit.Provenance == ProvenanceHuman {
			for _, text := range unit.Translations {
				m.corpus.Add(text)
			}
		}
	}

	return nil
}

// FuzzyTranslate finds a reusable translation for text in targetLang.
// The exact path returns a stored unit with confidence 1.0; the fuzzy path
// returns the best-ranked candidate whose confidence clears minConfidence,
// adapted to tctx. No qualifying match returns (nil, nil) — the caller is
// expected to fall back to its generation provider.
func (m *Memory) FuzzyTranslate(ctx context.Context, text, targetLang string, tctx *Context, minConfidence float64) (*TranslationMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lang := NormalizeLocale(targetLang)
	hash := HashText(text)

	// Exact path: a unit keyed by the normalized-text hash.
	m.mu.RLock()
	unit, ok := m.units[hash]
	var exact string
	if ok {
		exact, ok = unit.Translations[lang]
	}
	m.mu.RUnlock()

	if ok {
		m.touch(ctx, hash)
		return &TranslationMatch{
			Text:       exact,
			TargetLang: lang,
			Confidence: 1.0,
			Source:     SourceExactMatch,
			UnitHash:   hash,
		}, nil
	}

	// Fuzzy path: score all candidates carrying the target language.
	candidates, err := m.rank(ctx, text, lang, m.cfg.MinSimilarity)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	top := candidates[0]
	if top.Confidence < minConfidence {
		// LowConfidenceMatch is a defined no-match result, not an error.
		return nil, nil
	}

	m.touch(ctx, top.Unit.Hash)

	return &TranslationMatch{
		Text:       m.adapter.Adapt(top.Text, tctx),
		TargetLang: lang,
		Confidence: top.Confidence,
		Source:     SourceFuzzyMatch,
		UnitHash:   top.Unit.Hash,
	}, nil
}

// FindSimilarTranslations returns up to maxResults candidates whose
// similarity to text is at least threshold, ranked like FuzzyTranslate.
// Intended for review/UI surfaces, so it does not count as usage.
func (m *Memory) FindSimilarTranslations(ctx context.Context, text, targetLang string, threshold float64, maxResults int) ([]Candidate, error) {
	candidates, err := m.rank(ctx, text, NormalizeLocale(targetLang), threshold)
	if err != nil {
		return nil, err
	}
	if maxResults > 0 && len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates, nil
}

// Remember upserts a translation into the memory without marking it as
// human-verified. The Translator facade uses it to retain generated output.
func (m *Memory) Remember(ctx context.Context, text, targetLang, translation string, provenance Provenance) (*TranslationUnit, error) {
	unit := m.upsert(text, NormalizeLocale(targetLang), translation, provenance, nil)
	if err := m.persist(ctx, unit); err != nil {
		return unit, err
	}
	return unit, nil
}

// Unit returns a copy of the stored unit for a source text, if present.
func (m *Memory) Unit(text string) (*TranslationUnit, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	unit, ok := m.units[HashText(text)]
	return unit.Clone(), ok
}

// Len returns the number of stored translation units.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.units)
}

// CorpusSize returns the number of documents in the relevance corpus.
func (m *Memory) CorpusSize() int {
	return m.corpus.Len()
}

// candidateSnapshot is the immutable data needed to score one unit outside
// the memory lock.
type candidateSnapshot struct {
	hash       string
	sourceText string
	text       string
}

// rank scores every unit that carries lang against text, keeps those with
// similarity >= minSimilarity and sorts by the blended ranking score.
func (m *Memory) rank(ctx context.Context, text, lang string, minSimilarity float64) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	snapshots := make([]candidateSnapshot, 0, len(m.units))
	for hash, unit := range m.units {
		if translation, ok := unit.Translations[lang]; ok {
			snapshots = append(snapshots, candidateSnapshot{
				hash:       hash,
				sourceText: unit.SourceText,
				text:       translation,
			})
		}
	}
	m.mu.RUnlock()

	if len(snapshots) == 0 {
		return nil, nil
	}

	scores := m.scoreAll(ctx, text, snapshots)

	candidates := make([]Candidate, 0, len(snapshots))
	for i, snap := range snapshots {
		sim := scores[i]
		if sim < minSimilarity {
			continue
		}
		conf := m.scorer.Score(text, snap.sourceText, sim)
		candidates = append(candidates, Candidate{
			Text:       snap.text,
			Similarity: sim,
			Confidence: conf,
			Score:      sim*m.cfg.RankSimilarity + conf*m.cfg.RankConfidence,
			Unit:       m.unitClone(snap.hash),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates, ctx.Err()
}

// scoreAll computes similarities for all snapshots, fanning out across
// goroutines for large candidate sets.
func (m *Memory) scoreAll(ctx context.Context, text string, snapshots []candidateSnapshot) []float64 {
	scores := make([]float64, len(snapshots))

	if len(snapshots) < scoreParallelThreshold || m.cfg.ScoreConcurrency < 2 {
		for i, snap := range snapshots {
			scores[i] = m.engine.Similarity(text, snap.sourceText)
		}
		return scores
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	workers := m.cfg.ScoreConcurrency
	if workers > len(snapshots) {
		workers = len(snapshots)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				scores[i] = m.engine.Similarity(text, snapshots[i].sourceText)
			}
		}()
	}

	for i := range snapshots {
		select {
		case indexes <- i:
		case <-ctx.Done():
			// Stop feeding; already-dispatched work finishes.
			close(indexes)
			wg.Wait()
			return scores
		}
	}
	close(indexes)
	wg.Wait()

	return scores
}

func (m *Memory) unitClone(hash string) *TranslationUnit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.units[hash].Clone()
}

// upsert creates or updates a unit and returns a clone of the new state.
func (m *Memory) upsert(text, lang, translation string, provenance Provenance, correction *CorrectionRecord) *TranslationUnit {
	hash := HashText(text)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[hash]
	if !ok {
		unit = &TranslationUnit{
			SourceText:   NormalizeText(text),
			Hash:         hash,
			Translations: make(map[string]string),
			Provenance:   provenance,
			CreatedAt:    now,
		}
		m.units[hash] = unit
	}

	unit.Translations[lang] = translation
	unit.UsageCount++
	unit.LastUsedAt = now

	// Human provenance is sticky: a generated unit that receives a
	// correction becomes verified, never the other way around.
	if provenance == ProvenanceHuman {
		unit.Provenance = ProvenanceHuman
	}
	if correction != nil {
		unit.Corrections = append(unit.Corrections, *correction)
	}

	return unit.Clone()
}

// touch records a reuse of a unit and writes it through best-effort.
func (m *Memory) touch(ctx context.Context, hash string) {
	m.mu.Lock()
	unit, ok := m.units[hash]
	if ok {
		unit.UsageCount++
		unit.LastUsedAt = time.Now()
	}
	var clone *TranslationUnit
	if ok {
		clone = unit.Clone()
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.persist(ctx, clone); err != nil {
		m.logger.Warn("persisting unit usage failed", "hash", hash, "error", err)
	}
}

// persist writes a unit through to the backend, if one is configured.
func (m *Memory) persist(ctx context.Context, unit *TranslationUnit) error {
	if m.store == nil || unit == nil {
		return nil
	}

	data, err := json.Marshal(unit)
	if err != nil {
		return &SerializationError{Key: UnitKey(unit.Hash), Cause: err}
	}
	if err := m.store.Set(ctx, UnitKey(unit.Hash), data, 0); err != nil {
		return &StoreError{Op: "set", Key: UnitKey(unit.Hash), Message: "writing unit", Cause: err}
	}
	return nil
}
