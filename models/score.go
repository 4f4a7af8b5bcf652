package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// SetScore - геймы первой и второй пары в одном сете.
type SetScore [2]int

// Score хранится в БД как JSONB: [[6,3],[6,3]].
type Score []SetScore

// DefaultWinScore возвращает счет, записываемый при победе по неявке.
// Первый элемент каждого сета относится к pair1 матча.
func DefaultWinScore(winnerIsPair1 bool) Score {
	if winnerIsPair1 {
		return Score{{6, 3}, {6, 3}}
	}
	return Score{{3, 6}, {3, 6}}
}

// Validate проверяет, что геймы неотрицательны.
func (s Score) Validate() error {
	for i, set := range s {
		if set[0] < 0 || set[1] < 0 {
			return fmt.Errorf("set %d has negative games", i+1)
		}
	}
	return nil
}

func (s Score) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	// строка, а не []byte: lib/pq кодирует []byte как bytea, что ломает jsonb
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Score) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = Score{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for Score")
	}
}
