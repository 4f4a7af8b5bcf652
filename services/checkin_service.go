package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/repositories"
)

// CheckInResult - состояние матча и его игроков после отметки.
type CheckInResult struct {
	ScheduledMatch *models.ScheduledMatch         `json:"scheduled_match"`
	Players        []*models.ScheduledMatchPlayer `json:"players"`
	StatusChanged  bool                           `json:"status_changed"`
}

type CheckInService interface {
	CheckIn(ctx context.Context, scheduledMatchID, playerID int, checkedBy *int) (*CheckInResult, error)
	CheckOut(ctx context.Context, scheduledMatchID, playerID int) (*CheckInResult, error)
	ResetStatus(ctx context.Context, scheduledMatchID, playerID int) (*CheckInResult, error)
}

type checkInService struct {
	store     repositories.Store
	publisher broadcast.Publisher
	logger    *slog.Logger
	clock     Clock
}

func NewCheckInService(store repositories.Store, publisher broadcast.Publisher, logger *slog.Logger, clock Clock) CheckInService {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &checkInService{store: store, publisher: publisher, logger: logger, clock: clock}
}

func (s *checkInService) CheckIn(ctx context.Context, scheduledMatchID, playerID int, checkedBy *int) (*CheckInResult, error) {
	now := s.clock.now()
	present := true
	return s.mark(ctx, scheduledMatchID, playerID, func(p *models.ScheduledMatchPlayer) {
		p.IsPresent = &present
		p.CheckInTime = &now
		p.CheckedInBy = checkedBy
	})
}

func (s *checkInService) CheckOut(ctx context.Context, scheduledMatchID, playerID int) (*CheckInResult, error) {
	absent := false
	return s.mark(ctx, scheduledMatchID, playerID, func(p *models.ScheduledMatchPlayer) {
		p.IsPresent = &absent
		p.CheckInTime = nil
	})
}

func (s *checkInService) ResetStatus(ctx context.Context, scheduledMatchID, playerID int) (*CheckInResult, error) {
	return s.mark(ctx, scheduledMatchID, playerID, func(p *models.ScheduledMatchPlayer) {
		p.IsPresent = nil
		p.CheckInTime = nil
		p.CheckedInBy = nil
	})
}

// mark меняет строку игрока и пересчитывает статус матча по всем 4 строкам в той же транзакции.
func (s *checkInService) mark(ctx context.Context, scheduledMatchID, playerID int, apply func(*models.ScheduledMatchPlayer)) (*CheckInResult, error) {
	result := &CheckInResult{}
	var pairID int
	err := s.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, scheduledMatchID)
		if err != nil {
			return err
		}
		if !sm.Status.IsPrePlaying() {
			return fmt.Errorf("%w: check-in is closed for a %s match", ErrInvalidMatchState, sm.Status)
		}
		player, err := tx.UpdateScheduledMatchPlayer(ctx, sm.ID, playerID, apply)
		if err != nil {
			return err
		}
		pairID = player.PairID

		players, err := tx.GetScheduledMatchPlayers(ctx, sm.ID)
		if err != nil {
			return err
		}
		result.Players = players

		pr := countPresence(sm, players)
		next := sm.Status
		switch {
		case sm.Status == models.ScheduledStatusScheduled && pr.allPresent():
			next = models.ScheduledStatusReady
		case sm.Status == models.ScheduledStatusReady && !pr.allPresent():
			next = models.ScheduledStatusScheduled
		}
		if next == sm.Status {
			result.ScheduledMatch = sm
			return nil
		}
		result.ScheduledMatch, err = tx.UpdateScheduledMatch(ctx, sm.ID, func(m *models.ScheduledMatch) {
			m.Status = next
		})
		result.StatusChanged = true
		return err
	})
	if err != nil {
		return nil, passThrough(err, "update check-in")
	}

	sm := result.ScheduledMatch
	if result.StatusChanged {
		s.logger.InfoContext(ctx, "Scheduled match status changed by check-in",
			slog.Int("scheduled_match_id", sm.ID),
			slog.String("status", string(sm.Status)))
	}
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventPairUpdated, sm.TournamentID, map[string]interface{}{
		"scheduled_match_id": sm.ID,
		"pair_id":            pairID,
		"players":            playersOfPair(result.Players, pairID),
	}))
	s.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventScheduledMatchUpdated, sm.TournamentID, sm))
	return result, nil
}

func playersOfPair(players []*models.ScheduledMatchPlayer, pairID int) []*models.ScheduledMatchPlayer {
	out := make([]*models.ScheduledMatchPlayer, 0, 2)
	for _, p := range players {
		if p.PairID == pairID {
			out = append(out, p)
		}
	}
	return out
}
