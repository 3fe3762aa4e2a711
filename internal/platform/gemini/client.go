package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

const transcribePrompt = "Transcribe this English audio recording verbatim. Return only the transcript text, with no commentary or formatting."

// Client is a client for the Gemini API.
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	jsonModel *genai.GenerativeModel
}

// NewClient creates a new Gemini client. Both models run at temperature 0;
// the JSON model is used for text extraction.
func NewClient(ctx context.Context, apiKey, modelName string, maxTokens int) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	jsonModel := client.GenerativeModel(modelName)
	jsonModel.SetTemperature(0)
	jsonModel.ResponseMIMEType = "application/json"

	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
		jsonModel.SetMaxOutputTokens(int32(maxTokens))
	}

	return &Client{client: client, model: model, jsonModel: jsonModel}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateFromImage asks the model to answer prompt about an image.
func (c *Client) GenerateFromImage(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	resp, err := c.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		return "", fmt.Errorf("gemini image request: %w", err)
	}
	return responseText(resp), nil
}

// GenerateFromText asks the model to answer prompt about text, in JSON.
func (c *Client) GenerateFromText(ctx context.Context, prompt, text string) (string, error) {
	resp, err := c.jsonModel.GenerateContent(ctx, genai.Text(prompt), genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("gemini text request: %w", err)
	}
	return responseText(resp), nil
}

// Transcribe converts an audio recording to text.
func (c *Client) Transcribe(ctx context.Context, filename, mimeType string, audio []byte) (string, error) {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	resp, err := c.model.GenerateContent(ctx,
		genai.Text(transcribePrompt),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
	if err != nil {
		return "", fmt.Errorf("gemini transcription of %s: %w", filename, err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", fmt.Errorf("empty transcription from Gemini")
	}
	return text, nil
}

// responseText joins the text parts of the first candidate that has content.
// It returns "" when the response carries no text.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
