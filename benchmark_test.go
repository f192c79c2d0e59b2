package gotmem_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ZaguanLabs/gotmem"
	"github.com/ZaguanLabs/gotmem/cache"
)

// Benchmarks for performance validation

func BenchmarkHashText(b *testing.B) {
	text := "Hello World, this is a sample text for hashing"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gotmem.HashText(text)
	}
}

func BenchmarkSimilarity_Short(b *testing.B) {
	engine := gotmem.NewSimilarityEngine(gotmem.DefaultSimilarityWeights())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Similarity("Book a class", "Book a session")
	}
}

func BenchmarkSimilarity_Sentence(b *testing.B) {
	engine := gotmem.NewSimilarityEngine(gotmem.DefaultSimilarityWeights())
	a := "Welcome to our site, find the best products at great prices"
	c := "Welcome to our store, find great products at the best prices"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Similarity(a, c)
	}
}

func BenchmarkFuzzyTranslate_100Units(b *testing.B) {
	ctx := context.Background()
	m := gotmem.NewMemory()
	for i := 0; i < 100; i++ {
		text := fmt.Sprintf("Notification message number %d for your account", i)
		m.Remember(ctx, text, "es_ES", fmt.Sprintf("Notificación %d", i), gotmem.ProvenanceGenerated)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.FuzzyTranslate(ctx, "Notification message for your account", "es_ES", nil, 0.75); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLocalCache_Get(b *testing.B) {
	c := cache.NewLocalCache()
	c.Set("test-key", []byte("test-value"), nil, time.Hour, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("test-key")
	}
}

func BenchmarkLocalCache_Set(b *testing.B) {
	c := cache.NewLocalCache()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set("test-key", []byte("test-value"), nil, time.Hour, 0)
	}
}

func BenchmarkMultiTier_LocalHit(b *testing.B) {
	c := cache.New()
	ctx := context.Background()
	fetch := func(fctx context.Context) ([]byte, error) {
		return []byte("value"), nil
	}
	opts := cache.Options{TTL: time.Hour}
	c.GetOrSetBytes(ctx, "key", fetch, opts)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.GetOrSetBytes(ctx, "key", fetch, opts); err != nil {
			b.Fatal(err)
		}
	}
}
