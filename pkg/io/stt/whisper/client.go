package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xpanvictor/aria/pkg/Logger"
)

// HTTPClient talks to a whisper-asr-webservice instance
type HTTPClient struct {
	baseURL    string
	language   string
	prompt     string
	httpClient *http.Client
	logger     *Logger.Logger
}

// NewHTTPClient creates a new whisper client. A zero timeout means 30s.
func NewHTTPClient(baseURL, language string, timeout time.Duration, logger *Logger.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if language == "" {
		language = "en"
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		prompt:   "take note of word: aria",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: Logger.OrNop(logger).Named("whisper"),
	}
}

// Transcribe uploads the WAV file at path and returns its transcription
func (w *HTTPClient) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	// Create multipart form data
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio_file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	q := url.Values{}
	q.Set("encode", "true")
	q.Set("task", "transcribe")
	q.Set("language", w.language)
	q.Set("output", "json")
	q.Set("initial_prompt", w.prompt)
	requestURL := w.baseURL + "/asr?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		w.logger.Errorf("whisper service error (status %d): %s", resp.StatusCode, string(responseBody))
		return nil, fmt.Errorf("whisper service returned status %d: %s", resp.StatusCode, string(responseBody))
	}
	if len(bytes.TrimSpace(responseBody)) == 0 {
		return nil, ErrEmptyTranscript
	}

	var transcript Transcript
	if err := json.Unmarshal(responseBody, &transcript); err != nil {
		// Some deployments answer with plain text regardless of output=json
		w.logger.Debugf("treating non-JSON response as plain text transcription")
		return &Transcript{
			Text:        strings.TrimSpace(string(responseBody)),
			Language:    w.language,
			GeneratedAt: time.Now(),
		}, nil
	}
	if transcript.Language == "" {
		transcript.Language = w.language
	}
	transcript.Text = strings.TrimSpace(transcript.Text)
	transcript.GeneratedAt = time.Now()

	w.logger.Debugf("whisper transcription: %s (language: %s)", transcript.Text, transcript.Language)
	return &transcript, nil
}

var _ Transcriber = (*HTTPClient)(nil)
