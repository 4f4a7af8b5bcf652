package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/repositories"
)

const DefaultPreassignAfter = 40 * time.Minute

// AssignableCourt - корт, который можно предложить матчу: свободный или
// занятый матчем, идущим не меньше PreassignAfter.
type AssignableCourt struct {
	*models.Court
	Preassignable  bool  `json:"preassignable"`
	CurrentMatchID *int  `json:"current_match_id,omitempty"`
	RunningSeconds int64 `json:"running_seconds,omitempty"`
}

type CourtService interface {
	AutoAssign(ctx context.Context, scheduledMatchID int) (*models.ScheduledMatch, error)
	ManualAssign(ctx context.Context, scheduledMatchID, courtID int) (*models.ScheduledMatch, error)
	UnassignCourt(ctx context.Context, scheduledMatchID int) (*models.ScheduledMatch, error)
	// StartFromReady назначает корт, создает live-матч и переводит матч в playing одной транзакцией.
	// courtID == nil означает уже назначенный корт.
	StartFromReady(ctx context.Context, scheduledMatchID int, courtID *int) (*models.Match, error)
	ReleaseCourt(ctx context.Context, courtID int) (*models.Court, error)
	ListAssignableCourts(ctx context.Context, tournamentID int) ([]*AssignableCourt, error)
}

type courtService struct {
	store          repositories.Store
	publisher      broadcast.Publisher
	logger         *slog.Logger
	preassignAfter time.Duration
	clock          Clock
}

func NewCourtService(
	store repositories.Store,
	publisher broadcast.Publisher,
	logger *slog.Logger,
	preassignAfter time.Duration,
	clock Clock,
) CourtService {
	if preassignAfter <= 0 {
		preassignAfter = DefaultPreassignAfter
	}
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &courtService{
		store:          store,
		publisher:      publisher,
		logger:         logger,
		preassignAfter: preassignAfter,
		clock:          clock,
	}
}

func (s *courtService) AutoAssign(ctx context.Context, scheduledMatchID int) (*models.ScheduledMatch, error) {
	var (
		updated *models.ScheduledMatch
		court   *models.Court
	)
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, scheduledMatchID)
		if err != nil {
			return err
		}
		if sm.Status != models.ScheduledStatusScheduled && sm.Status != models.ScheduledStatusReady {
			return fmt.Errorf("%w: auto-assign requires scheduled or ready, got %s", ErrInvalidMatchState, sm.Status)
		}
		tournament, err := tx.GetTournament(ctx, sm.TournamentID)
		if err != nil {
			return err
		}
		free, err := tx.LockFirstAvailableCourt(ctx, tournament.ClubID)
		if err != nil {
			return err
		}
		court, err = occupyCourt(ctx, tx, free.ID)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateScheduledMatch(ctx, sm.ID, func(m *models.ScheduledMatch) {
			m.CourtID = intPtr(court.ID)
			m.Status = models.ScheduledStatusAssigned
			m.PreAssignedAt = nil
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "auto-assign court")
	}

	s.logger.InfoContext(ctx, "Court auto-assigned",
		slog.Int("scheduled_match_id", updated.ID),
		slog.Int("court_id", court.ID))
	s.publishAssignment(ctx, updated, court)
	return updated, nil
}

func (s *courtService) ManualAssign(ctx context.Context, scheduledMatchID, courtID int) (*models.ScheduledMatch, error) {
	var (
		updated  *models.ScheduledMatch
		court    *models.Court
		released *models.Court
	)
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, scheduledMatchID)
		if err != nil {
			return err
		}
		if !sm.Status.IsPrePlaying() {
			return fmt.Errorf("%w: cannot assign a court to a %s match", ErrInvalidMatchState, sm.Status)
		}
		tournament, err := tx.GetTournament(ctx, sm.TournamentID)
		if err != nil {
			return err
		}
		target, err := tx.GetCourtForUpdate(ctx, courtID)
		if err != nil {
			return err
		}
		if target.ClubID != tournament.ClubID {
			return fmt.Errorf("%w: court %d does not belong to club %d", ErrValidationFailed, courtID, tournament.ClubID)
		}

		// На корте еще идет матч: это предварительное назначение.
		var preAssignedAt *time.Time
		if !target.IsAvailable {
			busy, err := courtHasPlayingMatch(ctx, tx, courtID)
			if err != nil {
				return err
			}
			if busy {
				now := s.clock.now()
				preAssignedAt = &now
			}
		}

		if sm.CourtID != nil && *sm.CourtID != courtID {
			released, err = freeCourt(ctx, tx, *sm.CourtID, courtHolder{scheduledMatchID: sm.ID})
			if err != nil {
				return err
			}
		}
		court, err = occupyCourt(ctx, tx, courtID)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateScheduledMatch(ctx, sm.ID, func(m *models.ScheduledMatch) {
			m.CourtID = intPtr(courtID)
			m.Status = models.ScheduledStatusAssigned
			m.PreAssignedAt = preAssignedAt
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "assign court")
	}

	s.logger.InfoContext(ctx, "Court assigned",
		slog.Int("scheduled_match_id", updated.ID),
		slog.Int("court_id", courtID),
		slog.Bool("pre_assigned", updated.PreAssignedAt != nil))
	if released != nil {
		s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, released))
	}
	s.publishAssignment(ctx, updated, court)
	return updated, nil
}

func (s *courtService) UnassignCourt(ctx context.Context, scheduledMatchID int) (*models.ScheduledMatch, error) {
	var (
		updated  *models.ScheduledMatch
		released *models.Court
	)
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, scheduledMatchID)
		if err != nil {
			return err
		}
		if sm.Status != models.ScheduledStatusAssigned || sm.CourtID == nil {
			return fmt.Errorf("%w: match has no assigned court", ErrInvalidMatchState)
		}
		players, err := tx.GetScheduledMatchPlayers(ctx, sm.ID)
		if err != nil {
			return err
		}
		released, err = freeCourt(ctx, tx, *sm.CourtID, courtHolder{scheduledMatchID: sm.ID})
		if err != nil {
			return err
		}
		next := statusForPresence(countPresence(sm, players))
		updated, err = tx.UpdateScheduledMatch(ctx, sm.ID, func(m *models.ScheduledMatch) {
			m.CourtID = nil
			m.PreAssignedAt = nil
			m.Status = next
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "unassign court")
	}

	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, released))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, updated.TournamentID, updated))
	return updated, nil
}

func (s *courtService) StartFromReady(ctx context.Context, scheduledMatchID int, courtID *int) (*models.Match, error) {
	var (
		match    *models.Match
		updated  *models.ScheduledMatch
		court    *models.Court
		released *models.Court
	)
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, scheduledMatchID)
		if err != nil {
			return err
		}
		if sm.Status != models.ScheduledStatusReady && sm.Status != models.ScheduledStatusAssigned {
			return fmt.Errorf("%w: start requires ready or assigned, got %s", ErrInvalidMatchState, sm.Status)
		}

		targetID := sm.CourtID
		if courtID != nil {
			targetID = courtID
		}
		if targetID == nil {
			return fmt.Errorf("%w: court_id is required for a match without an assigned court", ErrValidationFailed)
		}
		ownCourt := sm.CourtID != nil && *sm.CourtID == *targetID

		target, err := tx.GetCourtForUpdate(ctx, *targetID)
		if err != nil {
			return err
		}
		if !target.IsAvailable && !ownCourt {
			return fmt.Errorf("%w: court %d is occupied", ErrCourtNotAvailable, target.ID)
		}
		if busy, err := courtHasPlayingMatch(ctx, tx, target.ID); err != nil {
			return err
		} else if busy {
			return fmt.Errorf("%w: court %d still has a match in progress", ErrCourtNotAvailable, target.ID)
		}

		if sm.CourtID != nil && !ownCourt {
			released, err = freeCourt(ctx, tx, *sm.CourtID, courtHolder{scheduledMatchID: sm.ID})
			if err != nil {
				return err
			}
		}
		// 1. Корт
		court, err = occupyCourt(ctx, tx, target.ID)
		if err != nil {
			return err
		}
		// 2. Live-матч
		match = &models.Match{
			TournamentID: sm.TournamentID,
			CourtID:      intPtr(target.ID),
			Pair1ID:      sm.Pair1ID,
			Pair2ID:      sm.Pair2ID,
			CategoryID:   sm.CategoryID,
			Status:       models.MatchStatusPlaying,
			Score:        models.Score{},
			StartTime:    s.clock.now(),
			AccessToken:  newAccessToken(),
		}
		if err := tx.CreateMatch(ctx, match); err != nil {
			return err
		}
		// 3. Статус
		updated, err = tx.UpdateScheduledMatch(ctx, sm.ID, func(m *models.ScheduledMatch) {
			m.CourtID = intPtr(target.ID)
			m.MatchID = intPtr(match.ID)
			m.Status = models.ScheduledStatusPlaying
			m.PreAssignedAt = nil
			// Матч начался: ожидающая техническая победа больше не актуальна.
			m.PendingDQF = false
			m.DefaultWinnerPairID = nil
		})
		return err
	})
	if err != nil {
		return nil, passThrough(err, "start scheduled match")
	}

	s.logger.InfoContext(ctx, "Scheduled match started",
		slog.Int("scheduled_match_id", updated.ID),
		slog.Int("match_id", match.ID),
		slog.Int("court_id", court.ID))
	if released != nil {
		s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, released))
	}
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, court))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventMatchStarted, match.TournamentID, match))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, updated.TournamentID, updated))
	return match, nil
}

// ReleaseCourt освобождает зависший корт. Корт, за которым закреплен незавершенный
// или идущий матч, не освобождается: ErrCourtNotAvailable.
func (s *courtService) ReleaseCourt(ctx context.Context, courtID int) (*models.Court, error) {
	var court *models.Court
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		var err error
		court, err = freeCourt(ctx, tx, courtID, courtHolder{})
		if err != nil {
			return err
		}
		if !court.IsAvailable {
			return fmt.Errorf("%w: court %d is still referenced by a match", ErrCourtNotAvailable, courtID)
		}
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "release court")
	}
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, court))
	return court, nil
}

func (s *courtService) ListAssignableCourts(ctx context.Context, tournamentID int) ([]*AssignableCourt, error) {
	tournament, err := s.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "get tournament")
	}
	courts, err := s.store.ListCourtsByClub(ctx, tournament.ClubID)
	if err != nil {
		return nil, handleRepositoryError(err, "list courts")
	}
	playing, err := s.store.ListPlayingMatches(ctx)
	if err != nil {
		return nil, handleRepositoryError(err, "list playing matches")
	}
	byCourt := make(map[int]*models.Match, len(playing))
	for _, m := range playing {
		if m.CourtID != nil {
			byCourt[*m.CourtID] = m
		}
	}

	now := s.clock.now()
	result := make([]*AssignableCourt, 0, len(courts))
	for _, c := range courts {
		if c.IsAvailable {
			result = append(result, &AssignableCourt{Court: c})
			continue
		}
		m, ok := byCourt[c.ID]
		if !ok {
			continue
		}
		running := now.Sub(m.StartTime)
		if running < s.preassignAfter {
			continue
		}
		result = append(result, &AssignableCourt{
			Court:          c,
			Preassignable:  true,
			CurrentMatchID: intPtr(m.ID),
			RunningSeconds: int64(running / time.Second),
		})
	}
	return result, nil
}

func (s *courtService) publishAssignment(ctx context.Context, sm *models.ScheduledMatch, court *models.Court) {
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventCourtUpdated, 0, court))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, sm.TournamentID, sm))
}

// occupyCourt и freeCourt - единственные места, где меняется IsAvailable.
func occupyCourt(ctx context.Context, tx repositories.Store, courtID int) (*models.Court, error) {
	return tx.UpdateCourt(ctx, courtID, func(c *models.Court) { c.IsAvailable = false })
}

// courtHolder - ссылки на корт, которые снимает текущая операция.
type courtHolder struct {
	scheduledMatchID int
	matchID          int
}

// freeCourt освобождает корт, только если на него не ссылается никто, кроме holder:
// за занятым кортом может быть закреплен предварительно назначенный матч, а за
// предварительно назначенным - еще идущий live-матч. Строка корта блокируется до проверки,
// чтобы два параллельных освобождения не оставили корт занятым без ссылок.
func freeCourt(ctx context.Context, tx repositories.Store, courtID int, holder courtHolder) (*models.Court, error) {
	court, err := tx.GetCourtForUpdate(ctx, courtID)
	if err != nil {
		return nil, err
	}
	inUse, err := tx.CourtInUse(ctx, courtID, holder.scheduledMatchID, holder.matchID)
	if err != nil {
		return nil, err
	}
	if inUse {
		return court, nil
	}
	return tx.UpdateCourt(ctx, courtID, func(c *models.Court) { c.IsAvailable = true })
}

func courtHasPlayingMatch(ctx context.Context, tx repositories.Store, courtID int) (bool, error) {
	playing, err := tx.ListPlayingMatches(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range playing {
		if m.CourtID != nil && *m.CourtID == courtID {
			return true, nil
		}
	}
	return false, nil
}
