package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/padel-live/repositories"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed   = errors.New("validation failed")
	ErrSamePair           = errors.New("pair1 and pair2 must be different")
	ErrInvalidPlannedTime = errors.New("planned time must be HH:MM")
	ErrInvalidScore       = errors.New("invalid score")

	// Ошибки состояния (конфликты)
	ErrInvalidMatchState       = errors.New("operation not allowed in the current scheduled match state")
	ErrInvalidStatusTransition = errors.New("invalid scheduled match status transition")
	ErrNotPendingDQF           = errors.New("scheduled match has no pending default win")
	ErrMatchNotPlaying         = errors.New("match is not in progress")
	ErrSweepInProgress         = errors.New("timeout sweep already in progress")

	// Ошибки кортов
	ErrNoCourtsAvailable = errors.New("no courts available")
	ErrCourtNotAvailable = errors.New("court is not available")

	// Ошибки, специфичные для сущностей (могут дублировать ErrNotFound, но дают больше контекста)
	ErrScheduledMatchNotFound = errors.New("scheduled match not found")
	ErrPlayerNotInMatch       = errors.New("player is not part of the scheduled match")
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrPairNotFound           = errors.New("pair not found")
	ErrCourtNotFound          = errors.New("court not found")
	ErrMatchNotFound          = errors.New("match not found")
)

// handleRepositoryError переводит ошибки хранилища в ошибки сервисного слоя.
// Неизвестные ошибки оборачиваются контекстом op без изменения.
func handleRepositoryError(err error, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repositories.ErrScheduledMatchNotFound):
		return ErrScheduledMatchNotFound
	case errors.Is(err, repositories.ErrPlayerNotInMatch):
		return ErrPlayerNotInMatch
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrPairNotFound):
		return ErrPairNotFound
	case errors.Is(err, repositories.ErrCourtNotFound):
		return ErrCourtNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrNoAvailableCourt):
		return ErrNoCourtsAvailable
	case errors.Is(err, repositories.ErrCourtOccupied):
		return ErrCourtNotAvailable
	case errors.Is(err, repositories.ErrScheduledMatchInvalid), errors.Is(err, repositories.ErrMatchInvalid):
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// passThrough возвращает ошибки сервисного слоя как есть, остальные прогоняет через handleRepositoryError.
// Нужен для ошибок, вернувшихся из InTx, где смешаны оба слоя.
func passThrough(err error, op string) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrValidationFailed, ErrSamePair, ErrInvalidPlannedTime, ErrInvalidScore,
		ErrInvalidMatchState, ErrInvalidStatusTransition, ErrNotPendingDQF, ErrMatchNotPlaying,
		ErrNoCourtsAvailable, ErrCourtNotAvailable,
		ErrScheduledMatchNotFound, ErrPlayerNotInMatch, ErrTournamentNotFound, ErrPairNotFound,
		ErrCourtNotFound, ErrMatchNotFound,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return handleRepositoryError(err, op)
}
