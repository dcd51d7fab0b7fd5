// Package gemini classifies crop leaf images with Gemini vision models.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	Client      *genai.Client
	VisionModel *genai.GenerativeModel
}

func NewGenAIClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)

	return &GeminiClient{
		Client:      client,
		VisionModel: model,
	}, nil
}

// NewGenAIClients builds one client per API key, skipping keys that fail to initialise.
func NewGenAIClients(ctx context.Context, apiKeys []string, modelName string) ([]GeminiClient, error) {
	clients := make([]GeminiClient, 0, len(apiKeys))
	for i, key := range apiKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		c, err := NewGenAIClient(ctx, key, modelName)
		if err != nil {
			slog.Warn("Skipping Gemini API key", "key_index", i, "error", err)
			continue
		}
		clients = append(clients, *c)
	}
	if len(clients) == 0 {
		return nil, errors.New("no usable Gemini API keys")
	}
	return clients, nil
}

func (g *GeminiClient) Close() error {
	if g.Client == nil {
		return nil
	}
	return g.Client.Close()
}

// SendAIWithImage sends a prompt and one image and decodes the JSON answer.
func (g *GeminiClient) SendAIWithImage(ctx context.Context, prompt string, image []byte) (map[string]any, error) {
	mimeType := detectImageMIMEType(image)
	slog.Info("Sending AI request with image", "prompt_length", len(prompt), "mime_type", mimeType, "bytes", len(image))

	resp, err := g.VisionModel.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: image},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with image: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("no content returned from AI")
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("response part is not text, received %T", resp.Candidates[0].Content.Parts[0])
	}
	return decodeJSONAnswer(string(textPart))
}

func decodeJSONAnswer(aiResponse string) (map[string]any, error) {
	aiResponse = strings.TrimSpace(aiResponse)
	if strings.HasPrefix(aiResponse, "```") {
		aiResponse = strings.TrimPrefix(aiResponse, "```json")
		aiResponse = strings.TrimPrefix(aiResponse, "```")
		aiResponse = strings.TrimSuffix(aiResponse, "```")
	}
	aiResponse = strings.TrimSpace(aiResponse)

	var resultMap map[string]any
	if err := json.Unmarshal([]byte(aiResponse), &resultMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal AI response to JSON: %w. \nRaw response was: %s", err, aiResponse)
	}
	return resultMap, nil
}

// detectImageMIMEType sniffs the magic bytes of the common upload formats.
func detectImageMIMEType(data []byte) string {
	switch {
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	case len(data) >= 4 && string(data[0:4]) == "GIF8":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
