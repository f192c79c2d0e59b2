// Package provider defines the generation fallback interface and implementations.
package provider

import "github.com/ZaguanLabs/gotmem"

// Provider is the interface for generation backends.
// This is an alias to the main package interface for convenience.
type Provider = gotmem.Provider

// TranslateRequest is an alias to the main package type.
type TranslateRequest = gotmem.TranslateRequest
