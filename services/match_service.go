package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/repositories"
)

type FinishMatchInput struct {
	// WinnerID - id пары-победителя. nil: определить по сетам; при равенстве матч без победителя.
	WinnerID *int         `json:"winner_id,omitempty"`
	Score    models.Score `json:"score,omitempty"`
	Notes    *string      `json:"notes,omitempty"`
}

type FinishMatchResult struct {
	Match          *models.Match          `json:"match"`
	Result         *models.Result         `json:"result"`
	ScheduledMatch *models.ScheduledMatch `json:"scheduled_match,omitempty"`
}

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	GetByAccessToken(ctx context.Context, token string) (*models.Match, error)
	UpdateScore(ctx context.Context, id int, score models.Score) (*models.Match, error)
	UpdateScoreByToken(ctx context.Context, token string, score models.Score) (*models.Match, error)
	FinishMatch(ctx context.Context, id int, input FinishMatchInput) (*FinishMatchResult, error)
}

type matchService struct {
	store     repositories.Store
	publisher broadcast.Publisher
	logger    *slog.Logger
	clock     Clock
}

func NewMatchService(store repositories.Store, publisher broadcast.Publisher, logger *slog.Logger, clock Clock) MatchService {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{store: store, publisher: publisher, logger: logger, clock: clock}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err, "get match")
	}
	return match, nil
}

func (s *matchService) GetByAccessToken(ctx context.Context, token string) (*models.Match, error) {
	match, err := s.store.GetMatchByAccessToken(ctx, token)
	if err != nil {
		return nil, handleRepositoryError(err, "get match by access token")
	}
	return match, nil
}

func (s *matchService) UpdateScoreByToken(ctx context.Context, token string, score models.Score) (*models.Match, error) {
	match, err := s.GetByAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.UpdateScore(ctx, match.ID, score)
}

func (s *matchService) UpdateScore(ctx context.Context, id int, score models.Score) (*models.Match, error) {
	if err := score.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScore, err)
	}
	var updated *models.Match
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		match, err := tx.GetMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusPlaying {
			return ErrMatchNotPlaying
		}
		updated, err = tx.UpdateMatch(ctx, id, func(m *models.Match) {
			m.Score = score
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "update score")
	}
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventMatchUpdated, updated.TournamentID, updated))
	return updated, nil
}

func (s *matchService) FinishMatch(ctx context.Context, id int, input FinishMatchInput) (*FinishMatchResult, error) {
	if input.Score != nil {
		if err := input.Score.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScore, err)
		}
	}
	out := &FinishMatchResult{}
	var released *models.Court
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		match, err := tx.GetMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusPlaying {
			return ErrMatchNotPlaying
		}
		score := match.Score
		if input.Score != nil {
			score = input.Score
		}
		winner, err := resolveWinner(match, score, input.WinnerID)
		if err != nil {
			return err
		}
		var loser *int
		if winner != nil {
			loser = intPtr(otherPair(match, *winner))
		}

		now := s.clock.now()
		out.Match, err = tx.UpdateMatch(ctx, id, func(m *models.Match) {
			m.Status = models.MatchStatusFinished
			m.Score = score
			m.WinnerID = winner
			m.EndTime = &now
			if input.Notes != nil {
				m.Notes = input.Notes
			}
		})
		if err != nil {
			return err
		}
		out.Result = &models.Result{
			MatchID:         id,
			WinnerID:        winner,
			LoserID:         loser,
			Score:           score,
			DurationSeconds: int(now.Sub(match.StartTime).Seconds()),
		}
		if err := tx.CreateResult(ctx, out.Result); err != nil {
			return err
		}
		if match.CourtID != nil {
			released, err = freeCourt(ctx, tx, *match.CourtID, courtHolder{matchID: id})
			if err != nil {
				return err
			}
		}

		sm, err := tx.GetScheduledMatchByMatchID(ctx, id)
		if errors.Is(err, repositories.ErrScheduledMatchNotFound) {
			// Матч без расписания (walk-up).
			return nil
		}
		if err != nil {
			return err
		}
		out.ScheduledMatch, err = tx.UpdateScheduledMatch(ctx, sm.ID, func(m *models.ScheduledMatch) {
			m.Status = models.ScheduledStatusCompleted
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "finish match")
	}

	m := out.Match
	s.logger.InfoContext(ctx, "Match finished", slog.Int("match_id", m.ID), slog.Int("duration_seconds", out.Result.DurationSeconds))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventMatchFinished, m.TournamentID, m))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventResultRecorded, m.TournamentID, out.Result))
	if released != nil {
		s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, released))
	}
	if out.ScheduledMatch != nil {
		s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, m.TournamentID, out.ScheduledMatch))
	}
	return out, nil
}

func otherPair(m *models.Match, pairID int) int {
	if m.Pair1ID == pairID {
		return m.Pair2ID
	}
	return m.Pair1ID
}

// resolveWinner берет явного победителя или считает выигранные сеты.
func resolveWinner(m *models.Match, score models.Score, explicit *int) (*int, error) {
	if explicit != nil {
		if *explicit != m.Pair1ID && *explicit != m.Pair2ID {
			return nil, fmt.Errorf("%w: winner %d is not a pair of match %d", ErrValidationFailed, *explicit, m.ID)
		}
		return intPtr(*explicit), nil
	}
	var sets1, sets2 int
	for _, set := range score {
		switch {
		case set[0] > set[1]:
			sets1++
		case set[1] > set[0]:
			sets2++
		}
	}
	switch {
	case sets1 > sets2:
		return intPtr(m.Pair1ID), nil
	case sets2 > sets1:
		return intPtr(m.Pair2ID), nil
	}
	return nil, nil
}
