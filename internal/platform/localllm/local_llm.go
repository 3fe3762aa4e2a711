package localllm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL points at a local OpenAI-compatible server.
const DefaultBaseURL = "http://localhost:1234/v1"

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL            string
	APIKey             string
	Model              string
	TranscriptionModel string
	MaxTokens          int
	Timeout            time.Duration
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	http               *resty.Client
	model              string
	transcriptionModel string
	maxTokens          int
}

// NewClient creates a new client for an OpenAI-compatible API.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o"
	}
	if opts.TranscriptionModel == "" {
		opts.TranscriptionModel = "whisper-1"
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2000
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		httpClient.SetAuthToken(opts.APIKey)
	}
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	return &Client{
		http:               httpClient,
		model:              opts.Model,
		transcriptionModel: opts.TranscriptionModel,
		maxTokens:          opts.MaxTokens,
	}
}

// Request represents the chat completions request body.
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Message is one chat message. Content is a string or a list of Content parts.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Content represents one part of a multi-part message.
type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents the image URL in the content.
type ImageURL struct {
	URL string `json:"url"`
}

// ResponseFormat asks the server for a particular output format.
type ResponseFormat struct {
	Type string `json:"type"`
}

// Response represents the chat completions response.
type Response struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response.
type Choice struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage represents a message in the response.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type transcription struct {
	Text string `json:"text"`
}

const imageUserText = "Extract the recipe information from this image and return it as JSON. If the required information is not present, use common sense to make a reasonable guess. Don't leave any fields blank."

// GenerateFromImage sends the image as a base64 data URL alongside prompt.
func (c *Client) GenerateFromImage(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return c.complete(ctx, Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: []Content{
				{Type: "text", Text: imageUserText},
				{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
			}},
		},
		MaxTokens: c.maxTokens,
	})
}

// GenerateFromText sends text with prompt and requests a JSON object back.
func (c *Client) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	return c.complete(ctx, Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: text},
		},
		MaxTokens:      c.maxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
}

// complete returns the first choice's content, or "" when there is none.
func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&Response{}).
		SetError(&apiError{}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return "", statusError(resp)
	}

	out, ok := resp.Result().(*Response)
	if !ok || len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// Transcribe posts the audio to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, filename, mimeType string, audio []byte) (string, error) {
	if filename == "" {
		filename = "audio.webm"
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(audio)).
		SetFormData(map[string]string{
			"model":    c.transcriptionModel,
			"language": "en",
		}).
		SetResult(&transcription{}).
		SetError(&apiError{}).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("failed to send transcription request: %w", err)
	}
	if resp.IsError() {
		return "", statusError(resp)
	}

	out, ok := resp.Result().(*transcription)
	if !ok || strings.TrimSpace(out.Text) == "" {
		return "", fmt.Errorf("empty transcription")
	}
	return strings.TrimSpace(out.Text), nil
}

func statusError(resp *resty.Response) error {
	if e, ok := resp.Error().(*apiError); ok && e.Error.Message != "" {
		return fmt.Errorf("received non-OK status code: %d: %s", resp.StatusCode(), e.Error.Message)
	}
	return fmt.Errorf("received non-OK status code: %d", resp.StatusCode())
}
