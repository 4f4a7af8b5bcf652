package models

import (
	"encoding/json"
	"time"
)

// ScheduledStatus - состояние запланированного матча.
type ScheduledStatus string

const (
	ScheduledStatusScheduled ScheduledStatus = "scheduled"
	ScheduledStatusReady     ScheduledStatus = "ready"
	ScheduledStatusAssigned  ScheduledStatus = "assigned"
	ScheduledStatusPlaying   ScheduledStatus = "playing"
	ScheduledStatusCompleted ScheduledStatus = "completed"
	ScheduledStatusCancelled ScheduledStatus = "cancelled"
)

// IsTerminal - completed или cancelled.
func (s ScheduledStatus) IsTerminal() bool {
	return s == ScheduledStatusCompleted || s == ScheduledStatusCancelled
}

// IsPrePlaying - матч еще не начался и не закрыт.
func (s ScheduledStatus) IsPrePlaying() bool {
	switch s {
	case ScheduledStatusScheduled, ScheduledStatusReady, ScheduledStatusAssigned:
		return true
	}
	return false
}

func (s ScheduledStatus) Valid() bool {
	return s.IsPrePlaying() || s.IsTerminal() || s == ScheduledStatusPlaying
}

// ScheduledMatch - запланированная встреча двух пар в конкретный день.
// Day хранится как timestamp, но смысл имеет только календарная дата (UTC).
type ScheduledMatch struct {
	ID                  int             `json:"id" db:"id"`
	TournamentID        int             `json:"tournament_id" db:"tournament_id"`
	Day                 time.Time       `json:"day" db:"day"`
	PlannedTime         *string         `json:"planned_time,omitempty" db:"planned_time"` // "HH:MM" по местному времени турнира
	Pair1ID             int             `json:"pair1_id" db:"pair1_id"`
	Pair2ID             int             `json:"pair2_id" db:"pair2_id"`
	CategoryID          *int            `json:"category_id,omitempty" db:"category_id"`
	Format              *string         `json:"format,omitempty" db:"format"`
	Status              ScheduledStatus `json:"status" db:"status"`
	CourtID             *int            `json:"court_id,omitempty" db:"court_id"`
	MatchID             *int            `json:"match_id,omitempty" db:"match_id"`
	Outcome             Outcome         `json:"-" db:"-"`
	DefaultWinnerPairID *int            `json:"default_winner_pair_id,omitempty" db:"default_winner_pair_id"`
	PendingDQF          bool            `json:"pending_dqf" db:"pending_dqf"`
	DQFDismissed        bool            `json:"dqf_dismissed" db:"dqf_dismissed"` // администратор отклонил техническую победу
	PreAssignedAt       *time.Time      `json:"pre_assigned_at,omitempty" db:"pre_assigned_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// HasPair сообщает, участвует ли пара в матче.
func (m *ScheduledMatch) HasPair(pairID int) bool {
	return m.Pair1ID == pairID || m.Pair2ID == pairID
}

// OpponentOf возвращает соперника переданной пары.
func (m *ScheduledMatch) OpponentOf(pairID int) int {
	if m.Pair1ID == pairID {
		return m.Pair2ID
	}
	return m.Pair1ID
}

// Clone возвращает глубокую копию (указатели не разделяются).
func (m *ScheduledMatch) Clone() *ScheduledMatch {
	if m == nil {
		return nil
	}
	c := *m
	c.PlannedTime = cloneString(m.PlannedTime)
	c.CategoryID = cloneInt(m.CategoryID)
	c.Format = cloneString(m.Format)
	c.CourtID = cloneInt(m.CourtID)
	c.MatchID = cloneInt(m.MatchID)
	c.DefaultWinnerPairID = cloneInt(m.DefaultWinnerPairID)
	c.PreAssignedAt = cloneTime(m.PreAssignedAt)
	return &c
}

// OutcomeColumns раскладывает Outcome в колонки outcome / outcome_reason.
func (m *ScheduledMatch) OutcomeColumns() (kind *string, reason *string) {
	if m.Outcome == nil {
		return nil, nil
	}
	k := string(m.Outcome.Kind())
	kind = &k
	if r := m.Outcome.Reason(); r != "" {
		reason = &r
	}
	return kind, reason
}

func (m ScheduledMatch) MarshalJSON() ([]byte, error) {
	type alias ScheduledMatch
	kind, reason := m.OutcomeColumns()
	return json.Marshal(struct {
		alias
		Outcome       *string `json:"outcome,omitempty"`
		OutcomeReason *string `json:"outcome_reason,omitempty"`
	}{alias: alias(m), Outcome: kind, OutcomeReason: reason})
}

// ScheduledMatchPlayer - отметка присутствия одного игрока в матче.
// IsPresent: nil - не отмечен, true - пришел, false - отмечен как отсутствующий.
type ScheduledMatchPlayer struct {
	ScheduledMatchID int        `json:"scheduled_match_id" db:"scheduled_match_id"`
	PlayerID         int        `json:"player_id" db:"player_id"`
	PairID           int        `json:"pair_id" db:"pair_id"`
	IsPresent        *bool      `json:"is_present" db:"is_present"`
	CheckInTime      *time.Time `json:"check_in_time,omitempty" db:"check_in_time"`
	CheckedInBy      *int       `json:"checked_in_by,omitempty" db:"checked_in_by"`
}

// Present - игрок явно отмечен как пришедший.
func (p *ScheduledMatchPlayer) Present() bool {
	return p.IsPresent != nil && *p.IsPresent
}

func (p *ScheduledMatchPlayer) Clone() *ScheduledMatchPlayer {
	if p == nil {
		return nil
	}
	c := *p
	if p.IsPresent != nil {
		v := *p.IsPresent
		c.IsPresent = &v
	}
	c.CheckInTime = cloneTime(p.CheckInTime)
	c.CheckedInBy = cloneInt(p.CheckedInBy)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
