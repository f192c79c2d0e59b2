// Package gotmem provides the retrieval core of a localization service:
// a translation memory engine with multi-metric fuzzy matching and
// confidence scoring, fed by human corrections, in front of an AI
// generation fallback.
//
// The companion cache package adds a multi-tier cache (in-process +
// Redis) with request coalescing, stale-while-revalidate and tag-based
// invalidation, used to keep translation lookups off the hot path.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/gotmem"
//	    "github.com/ZaguanLabs/gotmem/provider"
//	)
//
//	func main() {
//	    mem := gotmem.NewMemory()
//
//	    // Teach the memory a verified translation.
//	    _, err := mem.LearnFromCorrection(context.Background(),
//	        "Book a class", "Kurs buchen", "de_DE", nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Reuse it for similar input.
//	    match, err := mem.FuzzyTranslate(context.Background(),
//	        "Book a class", "de_DE", nil, 0.8)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(match.Text, match.Confidence) // Kurs buchen 1
//	}
//
// When no stored unit qualifies, wire a generation provider through the
// Translator facade; generated results are remembered and improve over
// time as corrections arrive.
package gotmem
