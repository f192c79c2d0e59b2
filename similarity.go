package gotmem

import (
	"math"
	"strings"
)

// SimilarityWeights controls how the four metrics blend into one score.
// The defaults come from the production tuning of the original service and
// should be validated against a labeled set before changing.
type SimilarityWeights struct {
	EditDistance  float64 // normalized Levenshtein
	JaroWinkler   float64
	Cosine        float64 // token-frequency cosine
	BigramJaccard float64 // word-bigram overlap
}

// DefaultSimilarityWeights returns the default metric weights.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{
		EditDistance:  0.3,
		JaroWinkler:   0.2,
		Cosine:        0.3,
		BigramJaccard: 0.2,
	}
}

func (w SimilarityWeights) sum() float64 {
	return w.EditDistance + w.JaroWinkler + w.Cosine + w.BigramJaccard
}

// SimilarityEngine computes multi-metric string similarity in [0,1].
// Results are symmetric: Similarity(a, b) == Similarity(b, a) within
// floating tolerance. The zero value is not usable; construct with
// NewSimilarityEngine.
type SimilarityEngine struct {
	weights SimilarityWeights
}

// NewSimilarityEngine creates an engine with the given weights.
// Zero weights fall back to the defaults.
func NewSimilarityEngine(weights SimilarityWeights) *SimilarityEngine {
	if weights.sum() == 0 {
		weights = DefaultSimilarityWeights()
	}
	return &SimilarityEngine{weights: weights}
}

// Similarity returns the weighted combined similarity of a and b.
func (e *SimilarityEngine) Similarity(a, b string) float64 {
	return e.Compare(a, b).Combined
}

// Compare returns the per-metric breakdown for a and b. Both inputs are
// normalized before comparison.
func (e *SimilarityEngine) Compare(a, b string) SimilarityResult {
	a = NormalizeText(a)
	b = NormalizeText(b)

	r := SimilarityResult{
		EditDistance:  editSimilarity(a, b),
		JaroWinkler:   jaroWinkler(a, b),
		Cosine:        cosineSimilarity(a, b),
		BigramJaccard: bigramJaccard(a, b),
	}

	total := e.weights.sum()
	r.Combined = (r.EditDistance*e.weights.EditDistance +
		r.JaroWinkler*e.weights.JaroWinkler +
		r.Cosine*e.weights.Cosine +
		r.BigramJaccard*e.weights.BigramJaccard) / total

	return r
}

// editSimilarity is 1 − levenshtein(a,b) / max(len a, len b), over runes.
func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes edit distance with a two-row DP table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// jaroWinkler computes the Jaro-Winkler similarity with the standard
// prefix scale (0.1, capped at 4 characters).
func jaroWinkler(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	window := len(ra)
	if len(rb) > window {
		window = len(rb)
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	matchA := make([]bool, len(ra))
	matchB := make([]bool, len(rb))

	matches := 0
	for i := range ra {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(rb) {
			hi = len(rb)
		}
		for j := lo; j < hi; j++ {
			if matchB[j] || ra[i] != rb[j] {
				continue
			}
			matchA[i] = true
			matchB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	// Count transpositions among matched characters.
	transpositions := 0
	j := 0
	for i := range ra {
		if !matchA[i] {
			continue
		}
		for !matchB[j] {
			j++
		}
		if ra[i] != rb[j] {
			transpositions++
		}
		j++
	}
	transpositions /= 2

	m := float64(matches)
	jaro := (m/float64(len(ra)) + m/float64(len(rb)) + (m-float64(transpositions))/m) / 3

	// Winkler prefix bonus.
	prefix := 0
	for i := 0; i < len(ra) && i < len(rb) && i < 4; i++ {
		if ra[i] != rb[i] {
			break
		}
		prefix++
	}

	return jaro + float64(prefix)*0.1*(1-jaro)
}

// cosineSimilarity compares token-frequency vectors built from the union
// vocabulary of a and b.
func cosineSimilarity(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	freqA := termFrequencies(ta)
	freqB := termFrequencies(tb)

	var dot, normA, normB float64
	for term, fa := range freqA {
		normA += fa * fa
		if fb, ok := freqB[term]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range freqB {
		normB += fb * fb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func termFrequencies(tokens []string) map[string]float64 {
	freq := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}
	return freq
}

// bigramJaccard computes intersection/union over word-bigram sets.
// Single-word inputs have no bigrams, so it falls back to unigram overlap.
func bigramJaccard(a, b string) float64 {
	setA := wordBigrams(a)
	setB := wordBigrams(b)

	if len(setA) == 0 && len(setB) == 0 {
		setA = wordSet(a)
		setB = wordSet(b)
		if len(setA) == 0 && len(setB) == 0 {
			return 1
		}
	}

	return jaccard(setA, setB)
}

func wordBigrams(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{})
	for i := 0; i+1 < len(words); i++ {
		set[words[i]+" "+words[i+1]] = struct{}{}
	}
	return set
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
