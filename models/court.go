package models

// Court представляет физический корт клуба.
// IsAvailable == false, пока на корте идет матч или за ним закреплен незавершенный ScheduledMatch.
type Court struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	ClubID      int     `json:"club_id" db:"club_id"`
	IsAvailable bool    `json:"is_available" db:"is_available"`
	StreamURL   *string `json:"stream_url,omitempty" db:"stream_url"`
}

func (c *Court) Clone() *Court {
	if c == nil {
		return nil
	}
	cp := *c
	cp.StreamURL = cloneString(c.StreamURL)
	return &cp
}
