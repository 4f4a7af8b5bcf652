package models

import "time"

// DefaultTimezone используется, если у турнира не задана IANA-зона.
const DefaultTimezone = "America/Santiago"

// Tournament представляет турнир. Для ядра важны только клуб (пул кортов) и часовой пояс.
type Tournament struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	ClubID    int       `json:"club_id" db:"club_id"`
	Timezone  *string   `json:"timezone,omitempty" db:"timezone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TimezoneOr возвращает часовой пояс турнира или fallback, если он пуст.
func (t *Tournament) TimezoneOr(fallback string) string {
	if t == nil || t.Timezone == nil || *t.Timezone == "" {
		return fallback
	}
	return *t.Timezone
}
