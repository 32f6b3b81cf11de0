package elevenlabs

import (
	"os"

	"github.com/cadencevoice/callpipe"
	"github.com/cadencevoice/callpipe/tts"
)

func init() {
	callpipe.RegisterTTSProvider("elevenlabs", &Factory{})
}

// Factory creates ElevenLabs TTS provider instances.
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
	if config.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(config.HTTPClient))
	}

	if model, ok := config.Custom["model"].(string); ok && model != "" {
		opts = append(opts, WithModel(model))
	}
	if voice, ok := config.Custom["voice"].(string); ok && voice != "" {
		opts = append(opts, WithVoice(voice))
	}

	return New(opts...), nil
}

// DefaultConfig implements callpipe.TTSProviderFactory.
func (f *Factory) DefaultConfig() callpipe.TTSProviderConfig {
	return callpipe.TTSProviderConfig{
		APIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		BaseURL: os.Getenv("ELEVENLABS_BASE_URL"),
	}
}
