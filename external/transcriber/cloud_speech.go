package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort   = 443
	defaultCloudSpeechModel = "long"
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

type recognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// CloudSpeechEngine sends each chunk to the Speech-to-Text v2 Recognize API.
type CloudSpeechEngine struct {
	client     recognizeClient
	recognizer string
	language   string
	model      string
}

func NewCloudSpeechEngine(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeechEngine, error) {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: detect credentials: %v", transcriber.ErrModelUnavailable, err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create speech client: %v", transcriber.ErrModelUnavailable, err)
	}
	slog.Info("cloud speech client ready", "location", location, "model", cfg.Model, "language", cfg.Language)
	return newCloudSpeechEngine(client, cfg.ProjectID, location, cfg.Language, cfg.Model), nil
}

func newCloudSpeechEngine(client recognizeClient, projectID, location, language, model string) *CloudSpeechEngine {
	if strings.TrimSpace(model) == "" {
		model = defaultCloudSpeechModel
	}
	return &CloudSpeechEngine{
		client:     client,
		recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", projectID, location),
		language:   language,
		model:      model,
	}
}

func (e *CloudSpeechEngine) Transcribe(ctx context.Context, chunk audio.Chunk) ([]transcriber.Segment, error) {
	resp, err := e.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer: e.recognizer,
		Config: &speechpb.RecognitionConfig{
			Model:         e.model,
			LanguageCodes: []string{e.language},
			DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
				ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
					Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
					SampleRateHertz:   int32(chunk.SampleRate),
					AudioChannelCount: 1,
				},
			},
			Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{
			Content: audio.EncodePCM16LE(chunk.Samples),
		},
	})
	if err != nil {
		if isPermanentSpeechError(err) {
			return nil, transcriber.Fatal(fmt.Errorf("cloud speech recognize: %w", err))
		}
		return nil, fmt.Errorf("cloud speech recognize: %w", err)
	}

	var segs []transcriber.Segment
	prevEnd := chunk.Start()
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		end := chunk.End()
		if offset := result.GetResultEndOffset(); offset != nil {
			_, end = clampToChunk(chunk, 0, offset.AsDuration())
		}
		end = max(end, prevEnd)
		segs = append(segs, transcriber.Segment{
			Text:  strings.TrimSpace(alts[0].GetTranscript()),
			Start: prevEnd,
			End:   end,
		})
		prevEnd = end
	}
	return segs, nil
}

// Shutdown releases the gRPC connection.
func (e *CloudSpeechEngine) Shutdown() error {
	return e.client.Close()
}

func isPermanentSpeechError(err error) bool {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound:
		return true
	default:
		return false
	}
}
