package providers

import (
	"os"

	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/errs"
	"github.com/ibeckermayer/xdigest/internal/llm"
)

// NewFromConfig creates an LLM provider from config. The API key comes from
// the environment, never from the config file.
func NewFromConfig(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "gemini", "":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, errs.New(errs.LLMAuthFailed, "GEMINI_API_KEY not set")
		}
		model := cfg.Model
		if model == "" {
			model = "gemini-2.0-flash"
		}
		return NewGeminiProvider(apiKey, model), nil
	default:
		return nil, errs.Newf(errs.ConfigInvalidValue, "unknown llm provider %q", cfg.Provider)
	}
}
