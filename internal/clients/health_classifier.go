package clients

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"yield-service/internal/models"
)

// HTTPHealthClassifier uploads a leaf image to the crop-health model service.
type HTTPHealthClassifier struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPHealthClassifier(baseURL string, client *http.Client) *HTTPHealthClassifier {
	return &HTTPHealthClassifier{BaseURL: baseURL, Client: newHTTPClient(client)}
}

func (h *HTTPHealthClassifier) Classify(ctx context.Context, image []byte, filename, contentType string) (models.HealthAssessment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part := textproto.MIMEHeader{}
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	part.Set("Content-Type", contentType)

	w, err := writer.CreatePart(part)
	if err != nil {
		return models.HealthAssessment{}, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := w.Write(image); err != nil {
		return models.HealthAssessment{}, fmt.Errorf("failed to write image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return models.HealthAssessment{}, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(h.BaseURL, "/api/analyze_health"), &body)
	if err != nil {
		return models.HealthAssessment{}, fmt.Errorf("failed to create classifier request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out models.HealthAssessment
	if err := send(h.Client, "health classifier", req, &out); err != nil {
		return models.HealthAssessment{}, err
	}
	return out, nil
}
