package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/run-coach/internal/coach"
	"alcyxob/run-coach/internal/domain"
	"alcyxob/run-coach/internal/repository"
)

// RaceInput identifies a race by its natural key plus its type.
type RaceInput struct {
	Name string
	Type string
	Date time.Time
}

type RaceService interface {
	// Register returns the registry entry for (name, date), creating it on
	// first use.
	Register(ctx context.Context, in RaceInput) (*domain.Race, error)
	GetRace(ctx context.Context, id primitive.ObjectID) (*domain.Race, error)
}

type raceService struct {
	raceRepo repository.RaceRepository
	logger   *slog.Logger
}

func NewRaceService(raceRepo repository.RaceRepository, logger *slog.Logger) RaceService {
	return &raceService{raceRepo: raceRepo, logger: logger}
}

func (s *raceService) Register(ctx context.Context, in RaceInput) (*domain.Race, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: race name is required", ErrValidationFailed)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: race date is required", ErrValidationFailed)
	}
	raceType, err := coach.ParseRaceType(in.Type)
	if err != nil {
		return nil, err
	}
	date := coach.DateOnly(in.Date)

	race, err := s.raceRepo.FindByKey(ctx, name, date)
	if err == nil {
		return race, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	race = &domain.Race{
		Name:          name,
		Type:          raceType,
		DistanceMiles: raceType.DistanceMiles(),
		Date:          date,
	}
	id, err := s.raceRepo.Create(ctx, race)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent registration; the row exists now.
		stored, getErr := s.raceRepo.FindByKey(ctx, name, date)
		if errors.Is(getErr, repository.ErrNotFound) {
			return nil, &coach.ConflictError{Resource: "race", Key: name + " " + date.Format(coach.DateLayout)}
		}
		if getErr != nil {
			return nil, getErr
		}
		s.logger.InfoContext(ctx, "race registry conflict resolved by re-query", "race_id", stored.ID.Hex())
		return stored, nil
	}
	if err != nil {
		return nil, err
	}
	race.ID = id
	s.logger.InfoContext(ctx, "race registered", "race_id", id.Hex(), "name", name, "type", raceType)
	return race, nil
}

func (s *raceService) GetRace(ctx context.Context, id primitive.ObjectID) (*domain.Race, error) {
	race, err := s.raceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRaceNotFound
		}
		return nil, err
	}
	return race, nil
}
