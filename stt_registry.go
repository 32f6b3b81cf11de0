package callpipe

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/cadencevoice/callpipe/stt"
)

// STTProviderConfig holds configuration for initializing an STT provider.
type STTProviderConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Custom     map[string]any
}

// STTProviderFactory creates STT provider instances from configuration.
type STTProviderFactory interface {
	// New creates a new STT provider instance with the given configuration.
	New(config STTProviderConfig) (stt.Provider, error)

	// DefaultConfig returns default configuration, typically from environment variables.
	DefaultConfig() STTProviderConfig
}

var (
	sttRegistryMu sync.RWMutex
	sttRegistry   = make(map[string]STTProviderFactory)
)

// RegisterSTTProvider registers an STT provider factory. This is typically called
// from a provider's init() function to enable self-registration on import.
//
// Example:
//
//	func init() {
//	    callpipe.RegisterSTTProvider("deepgram", &Factory{})
//	}
//
// Panics if a provider with the same name is already registered.
func RegisterSTTProvider(name string, factory STTProviderFactory) {
	sttRegistryMu.Lock()
	defer sttRegistryMu.Unlock()

	if _, exists := sttRegistry[name]; exists {
		panic(fmt.Sprintf("callpipe: STT provider %q already registered", name))
	}
	sttRegistry[name] = factory
}

// GetSTTProviderFactory returns the factory for a registered STT provider.
func GetSTTProviderFactory(name string) (STTProviderFactory, bool) {
	sttRegistryMu.RLock()
	defer sttRegistryMu.RUnlock()
	factory, ok := sttRegistry[name]
	return factory, ok
}

// NewSTTProvider builds a provider by registry name, merging the factory's
// default configuration with any caller overrides.
func NewSTTProvider(name string, override func(*STTProviderConfig)) (stt.Provider, error) {
	factory, ok := GetSTTProviderFactory(name)
	if !ok {
		return nil, &RegistryError{Kind: "stt", Name: name, Err: ErrNoProvider, Available: RegisteredSTTProviders()}
	}
	cfg := factory.DefaultConfig()
	if override != nil {
		override(&cfg)
	}
	return factory.New(cfg)
}

// RegisteredSTTProviders returns the names of all registered STT providers.
func RegisteredSTTProviders() []string {
	sttRegistryMu.RLock()
	defer sttRegistryMu.RUnlock()

	names := make([]string, 0, len(sttRegistry))
	for name := range sttRegistry {
		names = append(names, name)
	}
	return names
}

// IsSTTProviderRegistered checks if an STT provider is registered.
func IsSTTProviderRegistered(name string) bool {
	sttRegistryMu.RLock()
	defer sttRegistryMu.RUnlock()
	_, ok := sttRegistry[name]
	return ok
}
