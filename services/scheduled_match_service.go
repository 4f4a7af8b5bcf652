package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/repositories"
	"github.com/Dosada05/padel-live/timezone"
)

type CreateScheduledMatchInput struct {
	TournamentID int       `json:"tournament_id"`
	Day          time.Time `json:"day"`
	PlannedTime  *string   `json:"planned_time,omitempty"`
	Pair1ID      int       `json:"pair1_id"`
	Pair2ID      int       `json:"pair2_id"`
	CategoryID   *int      `json:"category_id,omitempty"`
	Format       *string   `json:"format,omitempty"`
}

// ScheduledMatchDetails - матч вместе с отметками игроков.
type ScheduledMatchDetails struct {
	ScheduledMatch *models.ScheduledMatch         `json:"scheduled_match"`
	Players        []*models.ScheduledMatchPlayer `json:"players"`
}

// DefaultWinResult - все, что создает подтверждение технической победы.
type DefaultWinResult struct {
	ScheduledMatch *models.ScheduledMatch `json:"scheduled_match"`
	Match          *models.Match          `json:"match"`
	Result         *models.Result         `json:"result"`
}

type ScheduledMatchService interface {
	Create(ctx context.Context, input CreateScheduledMatchInput) (*ScheduledMatchDetails, error)
	Get(ctx context.Context, id int) (*ScheduledMatchDetails, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.ScheduledMatch, error)
	Delete(ctx context.Context, id int) error
	Cancel(ctx context.Context, id int, reason string) (*models.ScheduledMatch, error)
	Reactivate(ctx context.Context, id int) (*models.ScheduledMatch, error)
	ConfirmDefaultWin(ctx context.Context, id int, note string) (*DefaultWinResult, error)
	DismissPendingDQF(ctx context.Context, id int) (*models.ScheduledMatch, error)
}

type scheduledMatchService struct {
	store     repositories.Store
	publisher broadcast.Publisher
	logger    *slog.Logger
	clock     Clock
}

func NewScheduledMatchService(store repositories.Store, publisher broadcast.Publisher, logger *slog.Logger, clock Clock) ScheduledMatchService {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &scheduledMatchService{store: store, publisher: publisher, logger: logger, clock: clock}
}

func (s *scheduledMatchService) Create(ctx context.Context, input CreateScheduledMatchInput) (*ScheduledMatchDetails, error) {
	if input.TournamentID <= 0 || input.Pair1ID <= 0 || input.Pair2ID <= 0 {
		return nil, fmt.Errorf("%w: tournament_id, pair1_id and pair2_id are required", ErrValidationFailed)
	}
	if input.Day.IsZero() {
		return nil, fmt.Errorf("%w: day is required", ErrValidationFailed)
	}
	if input.Pair1ID == input.Pair2ID {
		return nil, ErrSamePair
	}
	var plannedTime *string
	if input.PlannedTime != nil && strings.TrimSpace(*input.PlannedTime) != "" {
		hour, minute, err := timezone.ParseClock(*input.PlannedTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPlannedTime, *input.PlannedTime)
		}
		normalized := fmt.Sprintf("%02d:%02d", hour, minute)
		plannedTime = &normalized
	}

	if _, err := s.store.GetTournament(ctx, input.TournamentID); err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	pair1, err := s.store.GetPair(ctx, input.Pair1ID)
	if err != nil {
		return nil, handleRepositoryError(err, "get pair1")
	}
	pair2, err := s.store.GetPair(ctx, input.Pair2ID)
	if err != nil {
		return nil, handleRepositoryError(err, "get pair2")
	}

	day := input.Day.UTC()
	sm := &models.ScheduledMatch{
		TournamentID: input.TournamentID,
		Day:          time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		PlannedTime:  plannedTime,
		Pair1ID:      pair1.ID,
		Pair2ID:      pair2.ID,
		CategoryID:   input.CategoryID,
		Format:       input.Format,
		Status:       models.ScheduledStatusScheduled,
	}
	players := make([]*models.ScheduledMatchPlayer, 0, 4)
	for _, pair := range []*models.Pair{pair1, pair2} {
		for _, playerID := range pair.PlayerIDs() {
			players = append(players, &models.ScheduledMatchPlayer{PlayerID: playerID, PairID: pair.ID})
		}
	}

	if err := s.store.CreateScheduledMatch(ctx, sm, players); err != nil {
		return nil, handleRepositoryError(err, "create scheduled match")
	}

	s.logger.InfoContext(ctx, "Scheduled match created",
		slog.Int("scheduled_match_id", sm.ID),
		slog.Int("tournament_id", sm.TournamentID))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, sm.TournamentID, sm))
	return &ScheduledMatchDetails{ScheduledMatch: sm, Players: players}, nil
}

func (s *scheduledMatchService) Get(ctx context.Context, id int) (*ScheduledMatchDetails, error) {
	sm, err := s.store.GetScheduledMatch(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err, "get scheduled match")
	}
	players, err := s.store.GetScheduledMatchPlayers(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err, "get scheduled match players")
	}
	return &ScheduledMatchDetails{ScheduledMatch: sm, Players: players}, nil
}

func (s *scheduledMatchService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.ScheduledMatch, error) {
	if _, err := s.store.GetTournament(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	matches, err := s.store.ListScheduledMatchesByTournament(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "list scheduled matches")
	}
	if matches == nil {
		return []*models.ScheduledMatch{}, nil
	}
	return matches, nil
}

func (s *scheduledMatchService) Delete(ctx context.Context, id int) error {
	var (
		deleted  *models.ScheduledMatch
		released *models.Court
	)
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sm.Status == models.ScheduledStatusPlaying {
			return fmt.Errorf("%w: finish the live match before deleting", ErrInvalidMatchState)
		}
		if sm.CourtID != nil && !sm.Status.IsTerminal() {
			released, err = freeCourt(ctx, tx, *sm.CourtID, courtHolder{scheduledMatchID: sm.ID})
			if err != nil {
				return err
			}
		}
		deleted = sm
		return tx.DeleteScheduledMatch(ctx, id)
	})
	if err != nil {
		return passThrough(err, "delete scheduled match")
	}

	s.logger.InfoContext(ctx, "Scheduled match deleted", slog.Int("scheduled_match_id", id))
	if released != nil {
		s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, released))
	}
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchDeleted, deleted.TournamentID, map[string]int{"id": id}))
	return nil
}

func (s *scheduledMatchService) Cancel(ctx context.Context, id int, reason string) (*models.ScheduledMatch, error) {
	var (
		updated  *models.ScheduledMatch
		released *models.Court
	)
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sm.Status.IsPrePlaying() {
			return fmt.Errorf("%w: only matches that have not started can be cancelled", ErrInvalidMatchState)
		}
		if err := checkTransition(sm, models.ScheduledStatusCancelled); err != nil {
			return err
		}
		if sm.CourtID != nil {
			released, err = freeCourt(ctx, tx, *sm.CourtID, courtHolder{scheduledMatchID: sm.ID})
			if err != nil {
				return err
			}
		}
		updated, err = tx.UpdateScheduledMatch(ctx, id, func(m *models.ScheduledMatch) {
			m.Status = models.ScheduledStatusCancelled
			m.Outcome = models.CancelledOutcome{Note: strings.TrimSpace(reason)}
			m.CourtID = nil
			m.PreAssignedAt = nil
			m.PendingDQF = false
			m.DefaultWinnerPairID = nil
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "cancel scheduled match")
	}

	s.logger.InfoContext(ctx, "Scheduled match cancelled", slog.Int("scheduled_match_id", id))
	if released != nil {
		s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, released))
	}
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventMatchCancelled, updated.TournamentID, updated))
	return updated, nil
}

func (s *scheduledMatchService) Reactivate(ctx context.Context, id int) (*models.ScheduledMatch, error) {
	var updated *models.ScheduledMatch
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sm.Status.IsTerminal() {
			return fmt.Errorf("%w: only completed or cancelled matches can be reactivated", ErrInvalidMatchState)
		}
		if err := checkTransition(sm, models.ScheduledStatusScheduled); err != nil {
			return err
		}
		players, err := tx.GetScheduledMatchPlayers(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range players {
			if _, err := tx.UpdateScheduledMatchPlayer(ctx, id, p.PlayerID, func(row *models.ScheduledMatchPlayer) {
				row.IsPresent = nil
				row.CheckInTime = nil
				row.CheckedInBy = nil
			}); err != nil {
				return err
			}
		}
		updated, err = tx.UpdateScheduledMatch(ctx, id, func(m *models.ScheduledMatch) {
			m.Status = models.ScheduledStatusScheduled
			m.CourtID = nil
			m.MatchID = nil
			m.Outcome = nil
			m.DefaultWinnerPairID = nil
			m.PendingDQF = false
			m.DQFDismissed = false
			m.PreAssignedAt = nil
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "reactivate scheduled match")
	}

	s.logger.InfoContext(ctx, "Scheduled match reactivated", slog.Int("scheduled_match_id", id))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, updated.TournamentID, updated))
	return updated, nil
}

func (s *scheduledMatchService) ConfirmDefaultWin(ctx context.Context, id int, note string) (*DefaultWinResult, error) {
	out := &DefaultWinResult{}
	var released *models.Court
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sm.PendingDQF || sm.DefaultWinnerPairID == nil {
			return ErrNotPendingDQF
		}
		if !sm.Status.IsPrePlaying() {
			return fmt.Errorf("%w: default win cannot be applied to a %s match", ErrInvalidMatchState, sm.Status)
		}
		if err := checkTransition(sm, models.ScheduledStatusCompleted); err != nil {
			return err
		}
		winner := *sm.DefaultWinnerPairID
		loser := sm.OpponentOf(winner)
		score := models.DefaultWinScore(winner == sm.Pair1ID)
		now := s.clock.now()

		var notes *string
		if note = strings.TrimSpace(note); note != "" {
			notes = &note
		}
		out.Match = &models.Match{
			TournamentID: sm.TournamentID,
			CourtID:      sm.CourtID,
			Pair1ID:      sm.Pair1ID,
			Pair2ID:      sm.Pair2ID,
			CategoryID:   sm.CategoryID,
			Status:       models.MatchStatusFinished,
			Score:        score,
			WinnerID:     intPtr(winner),
			StartTime:    now,
			EndTime:      &now,
			AccessToken:  newAccessToken(),
			Notes:        notes,
		}
		if err := tx.CreateMatch(ctx, out.Match); err != nil {
			return err
		}
		out.Result = &models.Result{
			MatchID:  out.Match.ID,
			WinnerID: intPtr(winner),
			LoserID:  intPtr(loser),
			Score:    score,
		}
		if err := tx.CreateResult(ctx, out.Result); err != nil {
			return err
		}
		if sm.CourtID != nil {
			released, err = freeCourt(ctx, tx, *sm.CourtID, courtHolder{scheduledMatchID: sm.ID})
			if err != nil {
				return err
			}
		}
		out.ScheduledMatch, err = tx.UpdateScheduledMatch(ctx, id, func(m *models.ScheduledMatch) {
			m.Status = models.ScheduledStatusCompleted
			m.MatchID = intPtr(out.Match.ID)
			m.Outcome = models.DefaultOutcome{WinnerPairID: winner, Note: note}
			m.PendingDQF = false
			m.PreAssignedAt = nil
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "confirm default win")
	}

	sm := out.ScheduledMatch
	s.logger.InfoContext(ctx, "Default win confirmed",
		slog.Int("scheduled_match_id", sm.ID),
		slog.Int("match_id", out.Match.ID),
		slog.Int("winner_pair_id", *sm.DefaultWinnerPairID))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventMatchDefaultWin, sm.TournamentID, sm))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventMatchFinished, sm.TournamentID, out.Match))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventResultRecorded, sm.TournamentID, out.Result))
	if released != nil {
		s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, released))
	}
	return out, nil
}

func (s *scheduledMatchService) DismissPendingDQF(ctx context.Context, id int) (*models.ScheduledMatch, error) {
	var updated *models.ScheduledMatch
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sm.PendingDQF {
			return ErrNotPendingDQF
		}
		updated, err = tx.UpdateScheduledMatch(ctx, id, func(m *models.ScheduledMatch) {
			m.PendingDQF = false
			m.DefaultWinnerPairID = nil
			m.DQFDismissed = true
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "dismiss pending default win")
	}

	s.logger.InfoContext(ctx, "Pending default win dismissed", slog.Int("scheduled_match_id", id))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, updated.TournamentID, updated))
	return updated, nil
}
