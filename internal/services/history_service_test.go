package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"yield-service/internal/event"
	"yield-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPredictionStore struct {
	mock.Mock
}

func (m *MockPredictionStore) Save(ctx context.Context, record *models.PredictionRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockPredictionStore) ListByEmail(ctx context.Context, email string, limit, offset int) ([]models.PredictionRecord, error) {
	args := m.Called(ctx, email, limit, offset)
	return args.Get(0).([]models.PredictionRecord), args.Error(1)
}

func (m *MockPredictionStore) CountByEmail(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishPredictionCompleted(ctx context.Context, evt event.PredictionCompletedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func sampleOutcome(identity *models.Identity) PredictionOutcome {
	region := "Gujarat"
	return PredictionOutcome{
		WorkspaceID: "ws-1",
		Submission: SubmittedPrediction{
			Request: models.PredictionRequest{
				CropType: "Wheat", Season: "Rabi", SoilType: "Clayey",
				N: 120, P: 60, K: 40, PH: 6.5, AreaHectares: 2.5, Region: &region,
			},
			Result:   models.PredictionResult{PerHectare: 3, Total: 7.5, AreaHectares: 2.5},
			Identity: identity,
		},
		Boundary: rectangle(),
	}
}

func TestHistoryService_RecordStoresAndPublishes(t *testing.T) {
	store := new(MockPredictionStore)
	publisher := new(MockEventPublisher)
	svc := NewHistoryService(store, publisher, discardLogger())

	store.On("Save", mock.Anything, mock.MatchedBy(func(r *models.PredictionRecord) bool {
		return r.UserEmail == "farmer@example.com" &&
			r.Total == 7.5 &&
			r.Boundary != nil && strings.HasPrefix(*r.Boundary, "SRID=4326;POLYGON")
	})).Return(nil).Once()
	publisher.On("PublishPredictionCompleted", mock.Anything, mock.MatchedBy(func(e event.PredictionCompletedEvent) bool {
		return e.WorkspaceID == "ws-1" && e.Region == "Gujarat" && e.EventID != ""
	})).Return(nil).Once()

	err := svc.Record(context.Background(), sampleOutcome(&models.Identity{Email: " farmer@example.com "}))

	require.NoError(t, err)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestHistoryService_AnonymousIsPublishedNotStored(t *testing.T) {
	store := new(MockPredictionStore)
	publisher := new(MockEventPublisher)
	svc := NewHistoryService(store, publisher, discardLogger())
	publisher.On("PublishPredictionCompleted", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := svc.Record(context.Background(), sampleOutcome(nil))

	assert.ErrorContains(t, err, "broker down")
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHistoryService_ListClampsPaging(t *testing.T) {
	store := new(MockPredictionStore)
	svc := NewHistoryService(store, nil, discardLogger())
	store.On("ListByEmail", mock.Anything, "a@b.c", maxHistoryLimit, 0).Return([]models.PredictionRecord{{CropType: "Rice"}}, nil).Once()
	store.On("ListByEmail", mock.Anything, "a@b.c", defaultHistoryLimit, 40).Return([]models.PredictionRecord{}, nil).Once()

	records, err := svc.List(context.Background(), "a@b.c", 1000, -5)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = svc.List(context.Background(), "a@b.c", 0, 40)
	require.NoError(t, err)

	_, err = svc.List(context.Background(), " ", 10, 0)
	assert.ErrorIs(t, err, models.ErrIncompletePrecondition)
	store.AssertExpectations(t)
}

func TestHistoryService_WithoutStore(t *testing.T) {
	svc := NewHistoryService(nil, nil, discardLogger())

	assert.False(t, svc.Enabled())
	records, err := svc.List(context.Background(), "a@b.c", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	count, err := svc.Count(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, svc.Record(context.Background(), sampleOutcome(&models.Identity{Email: "a@b.c"})))

	store := new(MockPredictionStore)
	store.On("CountByEmail", mock.Anything, "a@b.c").Return(3, nil).Once()
	svc.AttachStore(store)
	assert.True(t, svc.Enabled())
	count, err = svc.Count(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
