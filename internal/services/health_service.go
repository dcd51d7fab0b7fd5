package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"path"
	"strings"
	"time"

	"yield-service/internal/models"

	"github.com/google/uuid"
)

const MaxHealthImageBytes = 10 << 20

type HealthClassifier interface {
	Classify(ctx context.Context, image []byte, filename, contentType string) (models.HealthAssessment, error)
}

type ImageArchive interface {
	Archive(ctx context.Context, objectName string, data []byte, contentType string) error
}

// HealthService runs crop health analysis on uploaded leaf images.
type HealthService struct {
	classifier HealthClassifier
	archive    ImageArchive
	jobs       JobSubmitter
	logger     *slog.Logger
}

// NewHealthService creates the service. archive and jobs may be nil.
func NewHealthService(classifier HealthClassifier, archive ImageArchive, jobs JobSubmitter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		classifier: classifier,
		archive:    archive,
		jobs:       jobs,
		logger:     logger.With("component", "health-service"),
	}
}

func (s *HealthService) Analyze(ctx context.Context, image []byte, filename string) (models.HealthAssessment, error) {
	if len(image) == 0 {
		return models.HealthAssessment{}, fmt.Errorf("%w: image is empty", models.ErrIncompletePrecondition)
	}
	if len(image) > MaxHealthImageBytes {
		return models.HealthAssessment{}, fmt.Errorf("%w: image exceeds %d bytes", models.ErrIncompletePrecondition, MaxHealthImageBytes)
	}
	contentType := http.DetectContentType(image)
	if !strings.HasPrefix(contentType, "image/") {
		return models.HealthAssessment{}, fmt.Errorf("%w: unsupported content type %s", models.ErrIncompletePrecondition, contentType)
	}
	if s.classifier == nil {
		return models.HealthAssessment{}, fmt.Errorf("%w: no classifier configured", models.ErrClassifierFailed)
	}

	assessment, err := s.classifier.Classify(ctx, image, filename, contentType)
	if err != nil {
		s.logger.Error("health classification failed", "filename", filename, "error", err)
		return models.HealthAssessment{}, fmt.Errorf("%w: %v", models.ErrClassifierFailed, err)
	}
	assessment = normalizeAssessment(assessment)

	s.archiveImage(image, filename, contentType)
	return assessment, nil
}

func (s *HealthService) archiveImage(image []byte, filename, contentType string) {
	if s.archive == nil {
		return
	}
	objectName := fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), path.Ext(filename))
	data := append([]byte(nil), image...)
	job := func(ctx context.Context) error {
		if err := s.archive.Archive(ctx, objectName, data, contentType); err != nil {
			s.logger.Warn("failed to archive health image", "object", objectName, "error", err)
			return err
		}
		return nil
	}
	if s.jobs == nil {
		_ = job(context.Background())
		return
	}
	if err := s.jobs.TrySubmit(job); err != nil {
		s.logger.Warn("health image archive skipped", "object", objectName, "error", err)
	}
}

func normalizeAssessment(a models.HealthAssessment) models.HealthAssessment {
	switch {
	case math.IsNaN(a.Confidence) || a.Confidence < 0:
		a.Confidence = 0
	case a.Confidence > 1:
		a.Confidence = 1
	}
	if a.Status != models.HealthStatusInfected {
		a.Disease = nil
	}
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	return a
}
