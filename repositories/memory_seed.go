package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Dosada05/padel-live/models"
)

// MemorySeed - справочники для in-memory хранилища. Турниры, пары и корты ведет
// внешняя система, поэтому без сида в памяти нет ни одного турнира.
type MemorySeed struct {
	Tournaments []*models.Tournament `json:"tournaments"`
	Pairs       []*models.Pair       `json:"pairs"`
	Courts      []*models.Court      `json:"courts"`
}

func DecodeMemorySeed(r io.Reader) (*MemorySeed, error) {
	var seed MemorySeed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode memory seed: %w", err)
	}
	return &seed, nil
}

func LoadMemorySeedFile(path string) (*MemorySeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open memory seed: %w", err)
	}
	defer f.Close()
	return DecodeMemorySeed(f)
}

// Apply переносит справочники в хранилище. Пара должна ссылаться на турнир из того же сида
// или уже добавленный ранее.
func (seed *MemorySeed) Apply(s *MemoryStore) error {
	for _, t := range seed.Tournaments {
		if t.ID <= 0 {
			return fmt.Errorf("tournament %q: id must be positive", t.Name)
		}
		s.AddTournament(t)
	}
	for _, p := range seed.Pairs {
		if p.ID <= 0 {
			return fmt.Errorf("pair: id must be positive")
		}
		if _, err := s.GetTournament(context.Background(), p.TournamentID); err != nil {
			return fmt.Errorf("pair %d: %w", p.ID, err)
		}
		s.AddPair(p)
	}
	for _, c := range seed.Courts {
		s.AddCourt(c)
	}
	return nil
}
