package callpipe

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure cases.
var (
	// ErrNoProvider is returned when a provider is not registered.
	ErrNoProvider = errors.New("provider not registered")

	// ErrNoAPIKey is returned when a required API key is not configured.
	ErrNoAPIKey = errors.New("API key not configured")
)

// RegistryError describes a provider lookup failure.
type RegistryError struct {
	Kind      string   // "stt" or "tts"
	Name      string   // The requested provider name
	Err       error    // The underlying error
	Available []string // Registered providers (if applicable)
}

func (e *RegistryError) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("%s provider %q: %v (registered: %v)", e.Kind, e.Name, e.Err, e.Available)
	}
	return fmt.Sprintf("%s provider %q: %v", e.Kind, e.Name, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// ProviderError wraps errors from provider operations.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
