package gotmem

import "strings"

// ConfidenceWeights controls how similarity and the auxiliary signals blend
// into one confidence value. Like the similarity weights, the defaults carry
// over from the original service and are tunable, not proven optimal.
type ConfidenceWeights struct {
	Similarity      float64
	LengthRatio     float64
	WordCount       float64
	CorpusRelevance float64
}

// DefaultConfidenceWeights returns the default confidence blend.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Similarity:      0.5,
		LengthRatio:     0.2,
		WordCount:       0.2,
		CorpusRelevance: 0.1,
	}
}

func (w ConfidenceWeights) sum() float64 {
	return w.Similarity + w.LengthRatio + w.WordCount + w.CorpusRelevance
}

// ConfidenceScorer estimates how trustworthy a fuzzy match is for reuse
// without human review. Scores are in [0,1].
type ConfidenceScorer struct {
	weights ConfidenceWeights
	corpus  *Corpus
}

// NewConfidenceScorer creates a scorer. Zero weights fall back to defaults;
// a nil corpus zeroes the corpus-relevance signal.
func NewConfidenceScorer(weights ConfidenceWeights, corpus *Corpus) *ConfidenceScorer {
	if weights.sum() == 0 {
		weights = DefaultConfidenceWeights()
	}
	return &ConfidenceScorer{weights: weights, corpus: corpus}
}

// Score combines a precomputed similarity between query and candidate with
// length, word-count and corpus-relevance signals.
func (s *ConfidenceScorer) Score(query, candidate string, similarity float64) float64 {
	query = NormalizeText(query)
	candidate = NormalizeText(candidate)

	relevance := 0.0
	if s.corpus != nil {
		relevance = s.corpus.Relevance(query, candidate)
	}

	confidence := similarity*s.weights.Similarity +
		lengthRatio(query, candidate)*s.weights.LengthRatio +
		wordCountSimilarity(query, candidate)*s.weights.WordCount +
		relevance*s.weights.CorpusRelevance

	confidence /= s.weights.sum()

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// lengthRatio is min(len)/max(len) over runes.
func lengthRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	lo, hi := la, lb
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 0
	}
	return float64(lo) / float64(hi)
}

// wordCountSimilarity is 1 − |wc(a)−wc(b)| / max(wc(a), 1), floored at 0.
func wordCountSimilarity(a, b string) float64 {
	wa := len(strings.Fields(a))
	wb := len(strings.Fields(b))

	diff := wa - wb
	if diff < 0 {
		diff = -diff
	}
	base := wa
	if base < 1 {
		base = 1
	}

	sim := 1 - float64(diff)/float64(base)
	if sim < 0 {
		return 0
	}
	return sim
}
