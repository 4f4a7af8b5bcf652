// Package broadcast доставляет доменные события подписчикам (websocket, Redis, RabbitMQ).
// Доставка best-effort: Publish не блокирует вызывающего и не возвращает ошибок.
package broadcast

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventMatchPendingDQF       EventType = "match_pending_dqf"
	EventMatchDefaultWin       EventType = "match_default_win"
	EventMatchFinished         EventType = "match_finished"
	EventMatchCancelled        EventType = "match_cancelled"
	EventCourtUpdated          EventType = "court_updated"
	EventPairUpdated           EventType = "pair_updated"
	EventMatchStarted          EventType = "match_started"
	EventMatchUpdated          EventType = "match_updated"
	EventResultRecorded        EventType = "result_recorded"
	EventScheduledMatchUpdated EventType = "scheduled_match_updated"
	EventScheduledMatchDeleted EventType = "scheduled_match_deleted"
)

// Event - сообщение вида {type, data}. TournamentID определяет комнату websocket;
// 0 означает событие без привязки к турниру (например, court_updated).
type Event struct {
	Type         EventType   `json:"type"`
	Data         interface{} `json:"data"`
	TournamentID int         `json:"tournament_id,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

func NewEvent(eventType EventType, tournamentID int, data interface{}) Event {
	return Event{Type: eventType, Data: data, TournamentID: tournamentID, OccurredAt: time.Now().UTC()}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher - единственная возможность, которая нужна ядру от транспорта.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// MultiPublisher рассылает событие всем вложенным издателям.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

// NopPublisher отбрасывает события.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
