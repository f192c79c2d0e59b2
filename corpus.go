package gotmem

import (
	"math"
	"strings"
	"sync"
)

// Corpus is a term-frequency/inverse-document-frequency index built from
// prior human-verified translations. It backs the corpus-relevance signal of
// the confidence scorer: overlap on rare terms counts for more than overlap
// on ubiquitous ones.
type Corpus struct {
	mu       sync.RWMutex
	docCount int
	docFreq  map[string]int // term → number of documents containing it
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docFreq: make(map[string]int)}
}

// Add indexes one document (a verified translation).
func (c *Corpus) Add(text string) {
	tokens := wordSet(NormalizeText(text))
	if len(tokens) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.docCount++
	for term := range tokens {
		c.docFreq[term]++
	}
}

// Len returns the number of indexed documents.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.docCount
}

// Relevance returns an IDF-weighted token overlap of a and b in [0,1].
// With an empty corpus it degrades to plain Jaccard overlap.
func (c *Corpus) Relevance(a, b string) float64 {
	setA := wordSet(NormalizeText(a))
	setB := wordSet(NormalizeText(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.docCount == 0 {
		return jaccard(setA, setB)
	}

	var shared, total float64
	for term := range setA {
		w := c.idf(term)
		total += w
		if _, ok := setB[term]; ok {
			shared += w
		}
	}
	for term := range setB {
		if _, ok := setA[term]; !ok {
			total += c.idf(term)
		}
	}

	if total == 0 {
		return 0
	}
	return shared / total
}

// idf must be called with the read lock held.
func (c *Corpus) idf(term string) float64 {
	df := c.docFreq[term]
	return math.Log(1 + float64(c.docCount)/float64(1+df))
}

// Tokenize exposes the corpus tokenization, mainly for tests and debugging.
func Tokenize(text string) []string {
	return strings.Fields(NormalizeText(text))
}
