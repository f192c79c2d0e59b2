package gotmem

import "strings"

// AdaptRule rewrites a stored translation for the requesting context.
// Rules run in registration order, each seeing the previous rule's output.
type AdaptRule func(translation string, ctx *Context) string

// Adapter applies context-sensitive adaptation (formality or domain
// substitution) to fuzzy-match output. With no rules registered it is a
// no-op, which is the correct default: adaptation policy belongs to the
// integrating service, not the engine.
type Adapter struct {
	rules []AdaptRule
}

// NewAdapter creates an adapter with the given rules.
func NewAdapter(rules ...AdaptRule) *Adapter {
	return &Adapter{rules: rules}
}

// Adapt runs the translation through all rules for ctx.
func (a *Adapter) Adapt(translation string, ctx *Context) string {
	if a == nil || ctx.IsZero() {
		return translation
	}
	for _, rule := range a.rules {
		translation = rule(translation, ctx)
	}
	return translation
}

// DomainGlossaryRule substitutes preferred domain terminology: when the
// request context matches domain, each glossary key found in the translation
// is replaced by its preferred form.
func DomainGlossaryRule(domain string, glossary map[string]string) AdaptRule {
	return func(translation string, ctx *Context) string {
		if ctx == nil || ctx.Domain != domain {
			return translation
		}
		for from, to := range glossary {
			translation = strings.ReplaceAll(translation, from, to)
		}
		return translation
	}
}

// FormalityRule swaps register-specific forms: substitutions maps an
// informal form to its formal equivalent and is applied in reverse for
// informal requests.
func FormalityRule(substitutions map[string]string) AdaptRule {
	inverse := make(map[string]string, len(substitutions))
	for informal, formal := range substitutions {
		inverse[formal] = informal
	}

	return func(translation string, ctx *Context) string {
		if ctx == nil {
			return translation
		}
		switch ctx.Formality {
		case "formal":
			for from, to := range substitutions {
				translation = strings.ReplaceAll(translation, from, to)
			}
		case "informal":
			for from, to := range inverse {
				translation = strings.ReplaceAll(translation, from, to)
			}
		}
		return translation
	}
}
