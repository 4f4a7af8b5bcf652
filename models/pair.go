package models

// Pair - пара из двух игроков, заявленная на турнир.
type Pair struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	Player1ID    int  `json:"player1_id" db:"player1_id"`
	Player2ID    int  `json:"player2_id" db:"player2_id"`
	CategoryID   *int `json:"category_id,omitempty" db:"category_id"`
}

// PlayerIDs возвращает обоих игроков пары.
func (p *Pair) PlayerIDs() [2]int {
	return [2]int{p.Player1ID, p.Player2ID}
}
