package gotmem

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// contextDigestLen is the number of hex characters kept from a context
// digest when building cache keys. Short digests trade a low collision
// probability across distinct contexts for compact keys; callers that need
// full structural keys can override the key via cache options.
const contextDigestLen = 8

// NormalizeText canonicalizes text for matching: trims, collapses internal
// whitespace and lowercases. Translation units are keyed by the hash of this
// form so that formatting differences do not defeat exact matches.
func NormalizeText(text string) string {
	fields := strings.Fields(text)
	return strings.ToLower(strings.Join(fields, " "))
}

// HashText computes the SHA-256 hash of the normalized text.
func HashText(text string) string {
	hash := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(hash[:])
}

// UnitKey returns the persistence key for a translation unit hash.
func UnitKey(hash string) string {
	return "unit:" + hash
}

// UnitKeyPattern is the glob pattern matching all persisted translation units.
const UnitKeyPattern = "unit:*"

// ContextDigest returns a short stable digest of a context for cache-key
// derivation. A nil or empty context digests to the empty string.
func ContextDigest(ctx *Context) string {
	if ctx.IsZero() {
		return ""
	}
	canonical := ctx.Domain + "|" + ctx.Tone + "|" + ctx.Formality
	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])[:contextDigestLen]
}

// CacheKey generates a cache key from a text hash and target language.
func CacheKey(hash, targetLang string) string {
	return hash + ":" + NormalizeLocale(targetLang)
}

// CacheKeyWithContext generates a cache key that keeps contextual variants
// of the same text from colliding with each other.
func CacheKeyWithContext(hash, targetLang string, ctx *Context) string {
	key := CacheKey(hash, targetLang)
	if digest := ContextDigest(ctx); digest != "" {
		key += ":" + digest
	}
	return key
}
