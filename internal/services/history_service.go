package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"yield-service/internal/event"
	"yield-service/internal/geometry"
	"yield-service/internal/models"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type PredictionStore interface {
	Save(ctx context.Context, record *models.PredictionRecord) error
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]models.PredictionRecord, error)
	CountByEmail(ctx context.Context, email string) (int, error)
}

type PredictionEventPublisher interface {
	PublishPredictionCompleted(ctx context.Context, evt event.PredictionCompletedEvent) error
}

// HistoryService records successful predictions and serves them back per user.
// Both the store and the publisher are optional.
type HistoryService struct {
	publisher PredictionEventPublisher
	logger    *slog.Logger

	mu    sync.RWMutex
	store PredictionStore
}

func NewHistoryService(store PredictionStore, publisher PredictionEventPublisher, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{
		store:     store,
		publisher: publisher,
		logger:    logger.With("component", "history-service"),
	}
}

// AttachStore sets the store once the database becomes reachable.
func (s *HistoryService) AttachStore(store PredictionStore) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
	s.logger.Info("prediction history store attached")
}

// Enabled reports whether predictions can be stored and listed.
func (s *HistoryService) Enabled() bool {
	return s.currentStore() != nil
}

func (s *HistoryService) currentStore() PredictionStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Record stores the prediction of an identified user and publishes a completion event.
// Anonymous predictions are published but not stored.
func (s *HistoryService) Record(ctx context.Context, outcome PredictionOutcome) error {
	req := outcome.Submission.Request
	result := outcome.Submission.Result
	email := ""
	if identity := outcome.Submission.Identity; identity != nil {
		email = strings.TrimSpace(identity.Email)
	}

	store := s.currentStore()
	var errs []error
	if store != nil && email != "" {
		record := &models.PredictionRecord{
			ID:           uuid.New(),
			UserEmail:    email,
			CropType:     req.CropType,
			SoilType:     req.SoilType,
			Season:       req.Season,
			AreaHectares: req.AreaHectares,
			N:            req.N,
			P:            req.P,
			K:            req.K,
			PH:           req.PH,
			Region:       req.Region,
			PerHectare:   result.PerHectare,
			Total:        result.Total,
			CreatedAt:    time.Now(),
		}
		if len(outcome.Boundary) > 0 {
			wkt, err := geometry.BoundaryWKT(outcome.Boundary)
			if err != nil {
				s.logger.Warn("boundary not stored", "workspace_id", outcome.WorkspaceID, "error", err)
			} else {
				record.Boundary = &wkt
			}
		}
		if err := store.Save(ctx, record); err != nil {
			errs = append(errs, err)
		} else {
			s.logger.Info("prediction recorded", "id", record.ID, "user_email", email)
		}
	}

	if s.publisher != nil {
		evt := event.PredictionCompletedEvent{
			EventID:      uuid.NewString(),
			WorkspaceID:  outcome.WorkspaceID,
			UserEmail:    email,
			CropType:     req.CropType,
			Season:       req.Season,
			SoilType:     req.SoilType,
			AreaHectares: req.AreaHectares,
			PerHectare:   result.PerHectare,
			Total:        result.Total,
			OccurredAt:   time.Now(),
		}
		if req.Region != nil {
			evt.Region = *req.Region
		}
		if err := s.publisher.PublishPredictionCompleted(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish prediction event: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *HistoryService) List(ctx context.Context, email string, limit, offset int) ([]models.PredictionRecord, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", models.ErrIncompletePrecondition)
	}
	store := s.currentStore()
	if store == nil {
		return []models.PredictionRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return store.ListByEmail(ctx, email, limit, offset)
}

func (s *HistoryService) Count(ctx context.Context, email string) (int, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, fmt.Errorf("%w: email is required", models.ErrIncompletePrecondition)
	}
	store := s.currentStore()
	if store == nil {
		return 0, nil
	}
	return store.CountByEmail(ctx, email)
}
