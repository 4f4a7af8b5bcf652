package models

import "time"

type MatchStatus string

const (
	MatchStatusPlaying  MatchStatus = "playing"
	MatchStatusFinished MatchStatus = "finished"
)

// Match - живой матч на корте. Создается в момент начала игры.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	CourtID      *int        `json:"court_id,omitempty" db:"court_id"`
	Pair1ID      int         `json:"pair1_id" db:"pair1_id"`
	Pair2ID      int         `json:"pair2_id" db:"pair2_id"`
	CategoryID   *int        `json:"category_id,omitempty" db:"category_id"`
	Status       MatchStatus `json:"status" db:"status"`
	Score        Score       `json:"score" db:"score"`
	WinnerID     *int        `json:"winner_id,omitempty" db:"winner_id"`
	StartTime    time.Time   `json:"start_time" db:"start_time"`
	EndTime      *time.Time  `json:"end_time,omitempty" db:"end_time"`
	AccessToken  string      `json:"access_token,omitempty" db:"access_token"` // ссылка для гостевого ввода счета
	Notes        *string     `json:"notes,omitempty" db:"notes"`
}

func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.CourtID = cloneInt(m.CourtID)
	c.CategoryID = cloneInt(m.CategoryID)
	c.WinnerID = cloneInt(m.WinnerID)
	c.EndTime = cloneTime(m.EndTime)
	c.Notes = cloneString(m.Notes)
	if m.Score != nil {
		c.Score = append(Score(nil), m.Score...)
	}
	return &c
}

// Result - итог завершенного матча. WinnerID/LoserID равны nil для матча без результата.
type Result struct {
	ID              int       `json:"id" db:"id"`
	MatchID         int       `json:"match_id" db:"match_id"`
	WinnerID        *int      `json:"winner_id,omitempty" db:"winner_id"`
	LoserID         *int      `json:"loser_id,omitempty" db:"loser_id"`
	Score           Score     `json:"score" db:"score"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
