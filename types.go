package gotmem

import "time"

// Provenance records how a translation entered the memory.
type Provenance string

const (
	// ProvenanceHuman marks translations verified or corrected by a person.
	ProvenanceHuman Provenance = "human"
	// ProvenanceGenerated marks translations produced by a generation provider.
	ProvenanceGenerated Provenance = "generated"
)

// MatchSource identifies which lookup path produced a translation.
type MatchSource string

const (
	// SourceExactMatch means the normalized source text hashed to a stored unit.
	SourceExactMatch MatchSource = "exact_match"
	// SourceFuzzyMatch means a similar stored unit was adapted and reused.
	SourceFuzzyMatch MatchSource = "fuzzy_match"
	// SourceGenerated means the generation fallback produced the translation.
	SourceGenerated MatchSource = "generated"
	// SourcePassthrough means target and source language matched, no work done.
	SourcePassthrough MatchSource = "passthrough"
)

// Context carries the linguistic classification of a text, produced by an
// external analyzer. The engine treats it as opaque apart from cache-key
// derivation and adaptation rules.
type Context struct {
	Domain    string `json:"domain,omitempty"`    // e.g. "fitness", "legal"
	Tone      string `json:"tone,omitempty"`      // e.g. "friendly", "urgent"
	Formality string `json:"formality,omitempty"` // e.g. "formal", "informal"
}

// IsZero reports whether the context carries no classification at all.
func (c *Context) IsZero() bool {
	return c == nil || (c.Domain == "" && c.Tone == "" && c.Formality == "")
}

// Hint renders the context as a short prompt hint for generation providers.
func (c *Context) Hint() string {
	if c.IsZero() {
		return ""
	}
	parts := make([]string, 0, 3)
	if c.Domain != "" {
		parts = append(parts, "domain="+c.Domain)
	}
	if c.Tone != "" {
		parts = append(parts, "tone="+c.Tone)
	}
	if c.Formality != "" {
		parts = append(parts, "formality="+c.Formality)
	}
	hint := parts[0]
	for _, p := range parts[1:] {
		hint += ", " + p
	}
	return hint
}

// TranslationUnit is a stored piece of translation memory: one normalized
// source text and its translations per target language. Units are mutated
// only through Memory methods.
type TranslationUnit struct {
	SourceText   string             `json:"source_text"` // normalized form
	Hash         string             `json:"hash"`
	Translations map[string]string  `json:"translations"` // locale code → text
	Provenance   Provenance         `json:"provenance"`
	UsageCount   int                `json:"usage_count"`
	CreatedAt    time.Time          `json:"created_at"`
	LastUsedAt   time.Time          `json:"last_used_at"`
	Corrections  []CorrectionRecord `json:"corrections,omitempty"`
}

// Clone returns a deep copy safe to hand outside the memory's lock.
func (u *TranslationUnit) Clone() *TranslationUnit {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Translations = make(map[string]string, len(u.Translations))
	for lang, text := range u.Translations {
		cp.Translations[lang] = text
	}
	cp.Corrections = append([]CorrectionRecord(nil), u.Corrections...)
	return &cp
}

// CorrectionRecord is an append-only record of a human correction applied to
// a translation unit.
type CorrectionRecord struct {
	ID            string    `json:"id"`
	OriginalText  string    `json:"original_text"`
	CorrectedText string    `json:"corrected_text"`
	TargetLang    string    `json:"target_lang"`
	Context       *Context  `json:"context,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// TranslationMatch is the outcome of a successful lookup or generation.
type TranslationMatch struct {
	Text       string      `json:"text"`
	TargetLang string      `json:"target_lang"`
	Confidence float64     `json:"confidence"`
	Source     MatchSource `json:"source"`
	UnitHash   string      `json:"unit_hash,omitempty"`
}

// SimilarityResult is the per-metric breakdown of one comparison. It is
// ephemeral: computed per query and never persisted.
type SimilarityResult struct {
	EditDistance  float64 // normalized Levenshtein, 1 = identical
	JaroWinkler   float64
	Cosine        float64 // over token-frequency vectors
	BigramJaccard float64 // word-bigram set overlap
	Combined      float64 // weighted blend in [0,1]
}

// Candidate is one ranked fuzzy-match candidate, as returned by
// Memory.FindSimilarTranslations.
type Candidate struct {
	Unit       *TranslationUnit `json:"unit"`
	Text       string           `json:"text"` // translation in the target language
	Similarity float64          `json:"similarity"`
	Confidence float64          `json:"confidence"`
	Score      float64          `json:"score"` // ranking score
}
