package whisper

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI transcribes through the hosted audio transcription endpoint.
type OpenAI struct {
	client   openai.Client
	model    openai.AudioModel
	language string
}

// NewOpenAI builds a transcriber. Extra options are passed to the client,
// e.g. option.WithBaseURL for a compatible self-hosted endpoint.
func NewOpenAI(apiKey, model, language string, opts ...option.RequestOption) *OpenAI {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    openai.AudioModel(model),
		language: language,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: o.model,
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}
	res, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription failed: %w", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}
	return &Transcript{
		Text:        text,
		Language:    o.language,
		GeneratedAt: time.Now(),
	}, nil
}

var _ Transcriber = (*OpenAI)(nil)
