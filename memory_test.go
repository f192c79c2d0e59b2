package gotmem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"testing"
	"time"
)

// mockUnitStore is an in-memory UnitStore with injectable failures.
type mockUnitStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	delErr error
}

func newMockUnitStore() *mockUnitStore {
	return &mockUnitStore{data: make(map[string][]byte)}
}

func (s *mockUnitStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.data[key]
	return val, ok, nil
}

func (s *mockUnitStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *mockUnitStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *mockUnitStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.data {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *mockUnitStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func TestMemory_ExactMatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Remember(ctx, "Hello World", "es_ES", "Hola Mundo", ProvenanceGenerated); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	// Normalization variants all land on the same unit
	for _, query := range []string{"Hello World", "hello world", "  HELLO   world "} {
		match, err := m.FuzzyTranslate(ctx, query, "es-ES", nil, 0.75)
		if err != nil {
			t.Fatalf("FuzzyTranslate(%q) failed: %v", query, err)
		}
		if match == nil {
			t.Fatalf("FuzzyTranslate(%q) returned no match", query)
		}
		if match.Source != SourceExactMatch {
			t.Errorf("Source = %q, want %q", match.Source, SourceExactMatch)
		}
		if match.Confidence != 1.0 {
			t.Errorf("Confidence = %f, want 1.0", match.Confidence)
		}
		if match.Text != "Hola Mundo" {
			t.Errorf("Text = %q, want %q", match.Text, "Hola Mundo")
		}
		if match.TargetLang != "es_ES" {
			t.Errorf("TargetLang = %q, want es_ES", match.TargetLang)
		}
	}
}

func TestMemory_ExactMatch_CountsUsage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Remember(ctx, "Hello", "es_ES", "Hola", ProvenanceGenerated)
	m.FuzzyTranslate(ctx, "Hello", "es_ES", nil, 0.75)

	unit, ok := m.Unit("Hello")
	if !ok {
		t.Fatal("unit not found")
	}
	// One from Remember, one from the exact lookup
	if unit.UsageCount != 2 {
		t.Errorf("UsageCount = %d, want 2", unit.UsageCount)
	}
	if unit.LastUsedAt.IsZero() {
		t.Error("LastUsedAt should be set")
	}
}

func TestMemory_FuzzyMatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.LearnFromCorrection(ctx, "Book a class", "Reserva una clase", "es_ES", nil); err != nil {
		t.Fatalf("LearnFromCorrection failed: %v", err)
	}

	match, err := m.FuzzyTranslate(ctx, "Book a class!", "es_ES", nil, 0.7)
	if err != nil {
		t.Fatalf("FuzzyTranslate failed: %v", err)
	}
	if match == nil {
		t.Fatal("expected a fuzzy match")
	}
	if match.Source != SourceFuzzyMatch {
		t.Errorf("Source = %q, want %q", match.Source, SourceFuzzyMatch)
	}
	if match.Text != "Reserva una clase" {
		t.Errorf("Text = %q, want %q", match.Text, "Reserva una clase")
	}
	if match.Confidence < 0.7 || match.Confidence >= 1.0 {
		t.Errorf("Confidence = %f, want in [0.7, 1.0)", match.Confidence)
	}
}

func TestMemory_NoMatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.LearnFromCorrection(ctx, "Book a class", "Reserva una clase", "es_ES", nil)

	match, err := m.FuzzyTranslate(ctx, "Your invoice is overdue", "es_ES", nil, 0.75)
	if err != nil {
		t.Fatalf("FuzzyTranslate failed: %v", err)
	}
	if match != nil {
		t.Errorf("expected no match, got %+v", match)
	}
}

func TestMemory_ConfidenceThreshold(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.LearnFromCorrection(ctx, "Book a class", "Reserva una clase", "es_ES", nil)

	// A near miss below an aggressive threshold is a defined no-match, not
	// an error.
	match, err := m.FuzzyTranslate(ctx, "Book a class!", "es_ES", nil, 0.99)
	if err != nil {
		t.Fatalf("FuzzyTranslate failed: %v", err)
	}
	if match != nil {
		t.Errorf("expected no match below threshold, got %+v", match)
	}
}

func TestMemory_LanguageFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Remember(ctx, "Hello", "es_ES", "Hola", ProvenanceGenerated)

	match, err := m.FuzzyTranslate(ctx, "Hello", "de_DE", nil, 0.5)
	if err != nil {
		t.Fatalf("FuzzyTranslate failed: %v", err)
	}
	if match != nil {
		t.Errorf("unit without the target language should not match, got %+v", match)
	}
}

func TestMemory_FindSimilarTranslations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.LearnFromCorrection(ctx, "Book a class", "Reserva una clase", "es_ES", nil)
	m.LearnFromCorrection(ctx, "Book a session", "Reserva una sesión", "es_ES", nil)
	m.LearnFromCorrection(ctx, "Cancel your booking", "Cancela tu reserva", "es_ES", nil)

	candidates, err := m.FindSimilarTranslations(ctx, "Book a class", "es_ES", 0.3, 10)
	if err != nil {
		t.Fatalf("FindSimilarTranslations failed: %v", err)
	}
	if len(candidates) < 2 {
		t.Fatalf("expected at least 2 candidates, got %d", len(candidates))
	}

	if candidates[0].Text != "Reserva una clase" {
		t.Errorf("best candidate = %q, want %q", candidates[0].Text, "Reserva una clase")
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[i-1].Score {
			t.Errorf("candidates not sorted by score: %f after %f", candidates[i].Score, candidates[i-1].Score)
		}
	}

	// maxResults caps the slice
	capped, err := m.FindSimilarTranslations(ctx, "Book a class", "es_ES", 0, 1)
	if err != nil {
		t.Fatalf("FindSimilarTranslations failed: %v", err)
	}
	if len(capped) != 1 {
		t.Errorf("expected 1 capped candidate, got %d", len(capped))
	}
}

func TestMemory_Load(t *testing.T) {
	ctx := context.Background()
	store := newMockUnitStore()

	unit := TranslationUnit{
		SourceText:   "book a class",
		Hash:         HashText("book a class"),
		Translations: map[string]string{"es_ES": "Reserva una clase"},
		Provenance:   ProvenanceHuman,
		UsageCount:   5,
		CreatedAt:    time.Now(),
		LastUsedAt:   time.Now(),
	}
	data, _ := json.Marshal(unit)
	store.data[UnitKey(unit.Hash)] = data
	store.data["unit:corrupt"] = []byte("{not json")

	m := NewMemory(WithUnitStore(store))
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1 (corrupt unit discarded)", m.Len())
	}
	// Human-verified translations feed the corpus on load
	if m.CorpusSize() != 1 {
		t.Errorf("CorpusSize = %d, want 1", m.CorpusSize())
	}

	match, err := m.FuzzyTranslate(ctx, "Book a class", "es_ES", nil, 0.75)
	if err != nil || match == nil {
		t.Fatalf("expected exact match after Load, got match=%v err=%v", match, err)
	}
	if match.Text != "Reserva una clase" {
		t.Errorf("Text = %q, want %q", match.Text, "Reserva una clase")
	}
}

func TestMemory_Load_NoStore(t *testing.T) {
	m := NewMemory()
	if err := m.Load(context.Background()); err != nil {
		t.Errorf("Load without a store should be a no-op, got: %v", err)
	}
}

func TestMemory_Remember_Persists(t *testing.T) {
	ctx := context.Background()
	store := newMockUnitStore()
	m := NewMemory(WithUnitStore(store))

	unit, err := m.Remember(ctx, "Hello", "es_ES", "Hola", ProvenanceGenerated)
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	if !store.has(UnitKey(unit.Hash)) {
		t.Fatal("unit was not written through to the store")
	}

	var stored TranslationUnit
	if err := json.Unmarshal(store.data[UnitKey(unit.Hash)], &stored); err != nil {
		t.Fatalf("stored unit is not valid JSON: %v", err)
	}
	if stored.Provenance != ProvenanceGenerated {
		t.Errorf("stored provenance = %q, want %q", stored.Provenance, ProvenanceGenerated)
	}
	if stored.Translations["es_ES"] != "Hola" {
		t.Errorf("stored translation = %q, want Hola", stored.Translations["es_ES"])
	}
}

func TestMemory_Remember_StoreFailure(t *testing.T) {
	ctx := context.Background()
	store := newMockUnitStore()
	store.setErr = errors.New("connection refused")
	m := NewMemory(WithUnitStore(store))

	unit, err := m.Remember(ctx, "Hello", "es_ES", "Hola", ProvenanceGenerated)

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
	// The in-memory state stays authoritative on persistence failure
	if unit == nil {
		t.Fatal("unit should still be returned")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMemory_AdaptsFuzzyMatches(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(DomainGlossaryRule("fitness", map[string]string{
		"clase": "sesión",
	}))
	m := NewMemory(WithAdapter(adapter))

	m.LearnFromCorrection(ctx, "Book a class", "Reserva una clase", "es_ES", nil)

	match, err := m.FuzzyTranslate(ctx, "Book a class!", "es_ES", &Context{Domain: "fitness"}, 0.7)
	if err != nil || match == nil {
		t.Fatalf("expected fuzzy match, got match=%v err=%v", match, err)
	}
	if match.Text != "Reserva una sesión" {
		t.Errorf("adapted text = %q, want %q", match.Text, "Reserva una sesión")
	}
}

func TestMemory_ParallelScoring(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// Enough candidates to cross the fan-out threshold
	for i := 0; i < 40; i++ {
		text := fmt.Sprintf("Reminder number %d for your account", i)
		m.Remember(ctx, text, "es_ES", fmt.Sprintf("Recordatorio %d", i), ProvenanceGenerated)
	}

	candidates, err := m.FindSimilarTranslations(ctx, "Reminder number 7 for your account", "es_ES", 0.5, 0)
	if err != nil {
		t.Fatalf("FindSimilarTranslations failed: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	if candidates[0].Text != "Recordatorio 7" {
		t.Errorf("best candidate = %q, want %q", candidates[0].Text, "Recordatorio 7")
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[i-1].Score {
			t.Errorf("candidates not sorted by score at index %d", i)
		}
	}
}

func TestMemory_ContextCancelled(t *testing.T) {
	m := NewMemory()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.FuzzyTranslate(ctx, "Hello", "es_ES", nil, 0.75); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestMemory_UnitNotFound(t *testing.T) {
	m := NewMemory()
	if unit, ok := m.Unit("never stored"); ok || unit != nil {
		t.Errorf("expected miss, got unit=%v ok=%v", unit, ok)
	}
}
