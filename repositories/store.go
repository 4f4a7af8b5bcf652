package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/padel-live/models"
)

// SQLExecutor - общий интерфейс *sql.DB и *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	ErrScheduledMatchNotFound = errors.New("scheduled match not found")
	ErrPlayerNotInMatch       = errors.New("player is not part of the scheduled match")
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrPairNotFound           = errors.New("pair not found")
	ErrCourtNotFound          = errors.New("court not found")
	ErrNoAvailableCourt       = errors.New("no available court")
	ErrMatchNotFound          = errors.New("match not found")
	ErrCourtOccupied          = errors.New("court already has a match in progress")
	ErrScheduledMatchInvalid  = errors.New("scheduled match references invalid tournament, pair or court")
	ErrMatchInvalid           = errors.New("match references invalid tournament, court or pair")
)

// Store - хранилище, которым пользуется ядро. Реализации: Postgres и in-memory.
//
// Методы Update* читают строку, применяют apply и записывают ее целиком; внутри InTx
// строка при этом заблокирована до конца транзакции. *ForUpdate-методы блокируют строку
// (в Postgres - SELECT ... FOR UPDATE) и имеют смысл только внутри InTx.
type Store interface {
	ListScheduledMatches(ctx context.Context) ([]*models.ScheduledMatch, error)
	ListScheduledMatchesByTournament(ctx context.Context, tournamentID int) ([]*models.ScheduledMatch, error)
	// ListOpenScheduledMatches - все матчи со статусом вне {completed, cancelled, playing}.
	ListOpenScheduledMatches(ctx context.Context) ([]*models.ScheduledMatch, error)
	GetScheduledMatch(ctx context.Context, id int) (*models.ScheduledMatch, error)
	GetScheduledMatchForUpdate(ctx context.Context, id int) (*models.ScheduledMatch, error)
	GetScheduledMatchByMatchID(ctx context.Context, matchID int) (*models.ScheduledMatch, error)
	// CreateScheduledMatch атомарно создает матч и его 4 строки игроков.
	CreateScheduledMatch(ctx context.Context, sm *models.ScheduledMatch, players []*models.ScheduledMatchPlayer) error
	UpdateScheduledMatch(ctx context.Context, id int, apply func(*models.ScheduledMatch)) (*models.ScheduledMatch, error)
	DeleteScheduledMatch(ctx context.Context, id int) error

	GetScheduledMatchPlayers(ctx context.Context, scheduledMatchID int) ([]*models.ScheduledMatchPlayer, error)
	UpdateScheduledMatchPlayer(ctx context.Context, scheduledMatchID, playerID int, apply func(*models.ScheduledMatchPlayer)) (*models.ScheduledMatchPlayer, error)

	GetTournament(ctx context.Context, id int) (*models.Tournament, error)
	GetPair(ctx context.Context, id int) (*models.Pair, error)

	ListCourts(ctx context.Context) ([]*models.Court, error)
	ListCourtsByClub(ctx context.Context, clubID int) ([]*models.Court, error)
	GetCourt(ctx context.Context, id int) (*models.Court, error)
	GetCourtForUpdate(ctx context.Context, id int) (*models.Court, error)
	// LockFirstAvailableCourt блокирует первый свободный корт клуба в порядке id.
	// Корты, уже заблокированные другими транзакциями или занятые по CourtInUse, пропускаются.
	// ErrNoAvailableCourt, если таких нет.
	LockFirstAvailableCourt(ctx context.Context, clubID int) (*models.Court, error)
	UpdateCourt(ctx context.Context, id int, apply func(*models.Court)) (*models.Court, error)
	// CourtInUse сообщает, ссылается ли на корт незавершенный ScheduledMatch (scheduled, ready, assigned)
	// или идущий Match, кроме exceptScheduledMatchID и exceptMatchID (0 - без исключения).
	CourtInUse(ctx context.Context, courtID, exceptScheduledMatchID, exceptMatchID int) (bool, error)

	CreateMatch(ctx context.Context, match *models.Match) error
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	GetMatchForUpdate(ctx context.Context, id int) (*models.Match, error)
	GetMatchByAccessToken(ctx context.Context, token string) (*models.Match, error)
	ListPlayingMatches(ctx context.Context) ([]*models.Match, error)
	UpdateMatch(ctx context.Context, id int, apply func(*models.Match)) (*models.Match, error)

	CreateResult(ctx context.Context, result *models.Result) error

	// InTx выполняет fn в одной транзакции. Ошибка fn откатывает все изменения.
	// Вложенный вызов присоединяется к внешней транзакции.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
