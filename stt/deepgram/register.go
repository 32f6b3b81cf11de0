package deepgram

import (
	"os"

	"github.com/cadencevoice/callpipe"
	"github.com/cadencevoice/callpipe/stt"
)

func init() {
	callpipe.RegisterSTTProvider("deepgram", &Factory{})
}

// Factory creates Deepgram STT provider instances.
type Factory struct{}

// New implements callpipe.STTProviderFactory.
func (f *Factory) New(config callpipe.STTProviderConfig) (stt.Provider, error) {
	var opts []Option

	if config.APIKey != "" {
		opts = append(opts, WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, WithBaseURL(config.BaseURL))
	}

	if model, ok := config.Custom["model"].(string); ok && model != "" {
		opts = append(opts, WithModel(model))
	}

	return New(opts...), nil
}

// DefaultConfig implements callpipe.STTProviderFactory.
func (f *Factory) DefaultConfig() callpipe.STTProviderConfig {
	return callpipe.STTProviderConfig{
		APIKey:  os.Getenv("DEEPGRAM_API_KEY"),
		BaseURL: os.Getenv("DEEPGRAM_BASE_URL"),
	}
}
