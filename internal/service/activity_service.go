package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/activity"
	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
	"alcyxob/run-coach/internal/storage"
)

const importTimeout = 30 * time.Second

// UploadURL is handed to the client, which PUTs the FIT file to URL and
// then asks for ObjectKey to be imported.
type UploadURL struct {
	URL       string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ManualActivityInput describes a run entered without a device file.
type ManualActivityInput struct {
	StartTime        time.Time
	DurationSeconds  float64
	DistanceMeters   float64
	AverageHeartRate float64
	MaxHeartRate     float64
}

type ActivityService interface {
	RequestUploadURL(ctx context.Context, athleteID primitive.ObjectID, contentType string) (*UploadURL, error)
	ImportFIT(ctx context.Context, athleteID primitive.ObjectID, objectKey string) (*domain.Activity, error)
	RecordActivity(ctx context.Context, athleteID primitive.ObjectID, in ManualActivityInput) (*domain.Activity, error)
	GetActivity(ctx context.Context, athleteID, activityID primitive.ObjectID) (*domain.Activity, error)
	ListActivities(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Activity, error)
}

type activityService struct {
	activityRepo repository.ActivityRepository
	fileStorage  storage.FileStorage
	logger       *slog.Logger
}

func NewActivityService(activityRepo repository.ActivityRepository, fileStorage storage.FileStorage, logger *slog.Logger) ActivityService {
	return &activityService{activityRepo: activityRepo, fileStorage: fileStorage, logger: logger}
}

func (s *activityService) RequestUploadURL(ctx context.Context, athleteID primitive.ObjectID, contentType string) (*UploadURL, error) {
	if contentType == "" {
		contentType = storage.FITContentType
	}
	if contentType != storage.FITContentType && contentType != "application/octet-stream" {
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrValidationFailed, contentType)
	}
	key := storage.ActivityObjectKey(athleteID.Hex())
	url, err := s.fileStorage.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("could not prepare upload: %w", err)
	}
	return &UploadURL{
		URL:       url,
		ObjectKey: key,
		ExpiresAt: time.Now().UTC().Add(storage.DefaultPresignedURLExpiry),
	}, nil
}

// ImportFIT decodes an uploaded FIT file and stores its summary. Importing
// an object key again returns the activity stored the first time.
func (s *activityService) ImportFIT(ctx context.Context, athleteID primitive.ObjectID, objectKey string) (*domain.Activity, error) {
	if !storage.OwnsObjectKey(athleteID.Hex(), objectKey) {
		return nil, ErrActivityAccessDenied
	}

	ctx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()

	if a, err := s.activityRepo.FindByObjectKey(ctx, objectKey); err == nil {
		return a, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	body, err := s.fileStorage.GetObject(ctx, objectKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch upload: %w", err)
	}
	defer body.Close()

	summary, err := activity.DecodeFIT(body)
	if err != nil {
		s.logger.WarnContext(ctx, "fit decode failed", "object_key", objectKey, "error", err)
		// Rejected uploads are not kept.
		if delErr := s.fileStorage.DeleteObject(ctx, objectKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete rejected upload", "object_key", objectKey, "error", delErr)
		}
		return nil, &coach.FormatError{Field: "file", Value: objectKey, Reason: err.Error()}
	}

	a := &domain.Activity{
		AthleteID:        athleteID,
		Source:           domain.SourceFIT,
		ObjectKey:        objectKey,
		StartTime:        summary.StartTime,
		DurationSeconds:  summary.DurationSeconds,
		DistanceMeters:   summary.DistanceMeters,
		AverageSpeed:     summary.AverageSpeed,
		AverageHeartRate: summary.AverageHeartRate,
		MaxHeartRate:     summary.MaxHeartRate,
	}
	id, err := s.activityRepo.Create(ctx, a)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent import of the same upload landed first.
		stored, getErr := s.activityRepo.FindByObjectKey(ctx, objectKey)
		if errors.Is(getErr, repository.ErrNotFound) {
			return nil, &coach.ConflictError{Resource: "activity", Key: objectKey}
		}
		if getErr != nil {
			return nil, getErr
		}
		return stored, nil
	}
	if err != nil {
		return nil, err
	}
	a.ID = id
	s.logger.InfoContext(ctx, "fit activity imported",
		"activity_id", id.Hex(), "distance_m", a.DistanceMeters, "duration_s", a.DurationSeconds)
	return a, nil
}

func (s *activityService) RecordActivity(ctx context.Context, athleteID primitive.ObjectID, in ManualActivityInput) (*domain.Activity, error) {
	if in.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrValidationFailed)
	}
	if err := positive("durationSeconds", in.DurationSeconds); err != nil {
		return nil, err
	}
	if err := positive("distanceMeters", in.DistanceMeters); err != nil {
		return nil, err
	}
	if in.AverageHeartRate < 0 || in.MaxHeartRate < 0 {
		return nil, fmt.Errorf("%w: heart rate cannot be negative", ErrValidationFailed)
	}

	a := &domain.Activity{
		AthleteID:        athleteID,
		Source:           domain.SourceManual,
		StartTime:        in.StartTime.UTC(),
		DurationSeconds:  in.DurationSeconds,
		DistanceMeters:   in.DistanceMeters,
		AverageSpeed:     in.DistanceMeters / in.DurationSeconds,
		AverageHeartRate: in.AverageHeartRate,
		MaxHeartRate:     in.MaxHeartRate,
	}
	id, err := s.activityRepo.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	s.logger.InfoContext(ctx, "manual activity recorded", "activity_id", id.Hex())
	return a, nil
}

func (s *activityService) GetActivity(ctx context.Context, athleteID, activityID primitive.ObjectID) (*domain.Activity, error) {
	a, err := s.activityRepo.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	if a.AthleteID != athleteID {
		return nil, ErrActivityAccessDenied
	}
	return a, nil
}

func (s *activityService) ListActivities(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Activity, error) {
	return s.activityRepo.GetByAthleteID(ctx, athleteID)
}

func positive(field string, v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return &coach.FormatError{Field: field, Value: strconv.FormatFloat(v, 'f', -1, 64), Reason: "must be a positive number"}
	}
	return nil
}
