package gemini

import (
	"context"
	"fmt"
	"strings"

	"yield-service/internal/models"
)

// HealthClassifier asks a Gemini vision model for a crop health assessment.
type HealthClassifier struct {
	keys *KeyPool
}

func NewHealthClassifier(keys *KeyPool) *HealthClassifier {
	return &HealthClassifier{keys: keys}
}

func (c *HealthClassifier) Classify(ctx context.Context, image []byte, _ string, _ string) (models.HealthAssessment, error) {
	var answer map[string]any
	err := c.keys.Do(ctx, func(ctx context.Context, client *GeminiClient) error {
		resp, err := client.SendAIWithImage(ctx, HealthPrompt, image)
		if err != nil {
			return err
		}
		answer = resp
		return nil
	})
	if err != nil {
		return models.HealthAssessment{}, err
	}
	return assessmentFromAnswer(answer)
}

func assessmentFromAnswer(answer map[string]any) (models.HealthAssessment, error) {
	status, _ := answer["status"].(string)
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "healthy":
		status = models.HealthStatusHealthy
	case "infected", "diseased":
		status = models.HealthStatusInfected
	default:
		return models.HealthAssessment{}, fmt.Errorf("unexpected health status %q", status)
	}

	out := models.HealthAssessment{Status: status, Recommendations: []string{}}
	if disease, ok := answer["disease"].(string); ok && strings.TrimSpace(disease) != "" && status == models.HealthStatusInfected {
		d := strings.TrimSpace(disease)
		out.Disease = &d
	}
	if confidence, ok := answer["confidence"].(float64); ok {
		out.Confidence = confidence
	}
	if recs, ok := answer["recommendations"].([]any); ok {
		for _, r := range recs {
			if s, ok := r.(string); ok && strings.TrimSpace(s) != "" {
				out.Recommendations = append(out.Recommendations, strings.TrimSpace(s))
			}
		}
	}
	return out, nil
}
