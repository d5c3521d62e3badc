package transcriber

import (
	"context"
	"fmt"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.ModelStore, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewGGMLModelStore(c.WhisperModelDir, c.WhisperModelBaseURL, nil), nil
	})
	do.Provide(injector, func(i do.Injector) (transcriber.Engine, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.TranscribeEngine {
		case config.EngineWhisperCLI:
			store := do.MustInvoke[transcriber.ModelStore](i)
			modelPath, err := store.Resolve(context.Background(), c.TranscribeModel)
			if err != nil {
				return nil, err
			}
			engine, err := NewWhisperCLIEngine(WhisperCLIConfig{
				Command:   c.WhisperCommand,
				ModelPath: modelPath,
				Language:  c.TranscribeLanguage,
			})
			if err != nil {
				return nil, err
			}
			return engine, nil
		case config.EngineCloudSpeech:
			model := c.TranscribeModel
			if IsGGMLModel(model) {
				model = ""
			}
			engine, err := NewCloudSpeechEngine(context.Background(), CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentialsJSON,
				Language:        c.TranscribeLanguage,
				Location:        c.GoogleCloudSpeechLocation,
				Model:           model,
			})
			if err != nil {
				return nil, err
			}
			return engine, nil
		case config.EngineOpenAI:
			return NewOpenAIEngine(OpenAIConfig{
				APIKey:   c.OpenAIAPIKey,
				BaseURL:  c.OpenAIBaseURL,
				Model:    c.TranscribeModel,
				Language: c.TranscribeLanguage,
			}), nil
		case config.EngineMock:
			return NewMockEngine(c.ChunkSilenceThreshold), nil
		default:
			return nil, fmt.Errorf("unknown transcribe engine %q", c.TranscribeEngine)
		}
	})
}
