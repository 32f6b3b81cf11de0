package cartesia

import (
	"os"

	"github.com/cadencevoice/callpipe"
	"github.com/cadencevoice/callpipe/tts"
)

func init() {
	callpipe.RegisterTTSProvider("cartesia", &Factory{})
}

// Factory creates Cartesia TTS provider instances.
type Factory struct{}

// New implements callpipe.TTSProviderFactory.
func (f *Factory) New(config callpipe.TTSProviderConfig) (tts.Provider, error) {
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
	if voice, ok := config.Custom["voice"].(string); ok && voice != "" {
		opts = append(opts, WithVoice(voice))
	}
	if version, ok := config.Custom["api_version"].(string); ok && version != "" {
		opts = append(opts, WithAPIVersion(version))
	}

	return New(opts...), nil
}

// DefaultConfig implements callpipe.TTSProviderFactory.
func (f *Factory) DefaultConfig() callpipe.TTSProviderConfig {
	return callpipe.TTSProviderConfig{
		APIKey:  os.Getenv("CARTESIA_API_KEY"),
		BaseURL: os.Getenv("CARTESIA_BASE_URL"),
	}
}
