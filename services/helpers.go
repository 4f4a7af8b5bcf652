package services

import (
	"fmt"
	"time"

	"github.com/Dosada05/padel-live/models"
	"github.com/google/uuid"
)

// Clock - источник текущего времени. nil означает time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtr(v int) *int {
	return &v
}

func newAccessToken() string {
	return uuid.NewString()
}

func isValidStatusTransition(current, next models.ScheduledStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.ScheduledStatus][]models.ScheduledStatus{
		models.ScheduledStatusScheduled: {models.ScheduledStatusReady, models.ScheduledStatusAssigned, models.ScheduledStatusPlaying, models.ScheduledStatusCompleted, models.ScheduledStatusCancelled},
		models.ScheduledStatusReady:     {models.ScheduledStatusScheduled, models.ScheduledStatusAssigned, models.ScheduledStatusPlaying, models.ScheduledStatusCompleted, models.ScheduledStatusCancelled},
		models.ScheduledStatusAssigned:  {models.ScheduledStatusScheduled, models.ScheduledStatusReady, models.ScheduledStatusPlaying, models.ScheduledStatusCompleted, models.ScheduledStatusCancelled},
		models.ScheduledStatusPlaying:   {models.ScheduledStatusCompleted},
		models.ScheduledStatusCompleted: {models.ScheduledStatusScheduled},
		models.ScheduledStatusCancelled: {models.ScheduledStatusScheduled},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func checkTransition(sm *models.ScheduledMatch, next models.ScheduledStatus) error {
	if !isValidStatusTransition(sm.Status, next) {
		return fmt.Errorf("%w: %s -> %s (scheduled match %d)", ErrInvalidStatusTransition, sm.Status, next, sm.ID)
	}
	return nil
}

// presence - число отметившихся игроков каждой пары.
type presence struct {
	pair1, pair2 int
	total        int
}

func countPresence(sm *models.ScheduledMatch, players []*models.ScheduledMatchPlayer) presence {
	var p presence
	for _, pl := range players {
		if !pl.Present() {
			continue
		}
		p.total++
		switch pl.PairID {
		case sm.Pair1ID:
			p.pair1++
		case sm.Pair2ID:
			p.pair2++
		}
	}
	return p
}

func (p presence) pair1Confirmed() bool { return p.pair1 == 2 }
func (p presence) pair2Confirmed() bool { return p.pair2 == 2 }
func (p presence) allPresent() bool     { return p.pair1Confirmed() && p.pair2Confirmed() }

// statusForPresence - статус доигрового матча без корта.
func statusForPresence(p presence) models.ScheduledStatus {
	if p.allPresent() {
		return models.ScheduledStatusReady
	}
	return models.ScheduledStatusScheduled
}
