package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/repositories"
	"github.com/stretchr/testify/require"
)

const (
	testTournamentID = 1
	testClubID       = 10
	pairA            = 101 // игроки 1, 2
	pairB            = 102 // игроки 3, 4
)

// 20 октября 2025, Сантьяго в UTC-3: 10:00 по местному = 13:00 UTC.
var matchDay = time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)

func localTen() time.Time { return time.Date(2025, time.October, 20, 13, 0, 0, 0, time.UTC) }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e broadcast.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) Types() []broadcast.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]broadcast.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingPublisher) Count(t broadcast.EventType) int {
	n := 0
	for _, et := range r.Types() {
		if et == t {
			n++
		}
	}
	return n
}

func (r *recordingPublisher) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	store     *repositories.MemoryStore
	publisher *recordingPublisher
	clock     *fakeClock
	logger    *slog.Logger

	processor TimeoutProcessor
	courts    CourtService
	checkIns  CheckInService
	scheduled ScheduledMatchService
	matches   MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: localTen().Add(-2 * time.Hour)}
	store := repositories.NewMemoryStore().WithClock(clock.Now)
	santiago := models.DefaultTimezone
	store.AddTournament(&models.Tournament{ID: testTournamentID, Name: "Open Vitacura", ClubID: testClubID, Timezone: &santiago})
	store.AddPair(&models.Pair{ID: pairA, TournamentID: testTournamentID, Player1ID: 1, Player2ID: 2})
	store.AddPair(&models.Pair{ID: pairB, TournamentID: testTournamentID, Player1ID: 3, Player2ID: 4})

	f := &fixture{
		store:     store,
		publisher: &recordingPublisher{},
		clock:     clock,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.processor = NewTimeoutProcessor(store, f.publisher, DefaultProcessorConfig(), f.logger, clock.Now)
	f.courts = NewCourtService(store, f.publisher, f.logger, DefaultPreassignAfter, clock.Now)
	f.checkIns = NewCheckInService(store, f.publisher, f.logger, clock.Now)
	f.scheduled = NewScheduledMatchService(store, f.publisher, f.logger, clock.Now)
	f.matches = NewMatchService(store, f.publisher, f.logger, clock.Now)
	return f
}

func (f *fixture) addCourt(t *testing.T, name string, available bool) int {
	t.Helper()
	c := &models.Court{Name: name, ClubID: testClubID, IsAvailable: available}
	f.store.AddCourt(c)
	return c.ID
}

// schedule создает матч на 10:00 по Сантьяго. CreatedAt берется из часов фикстуры.
func (f *fixture) schedule(t *testing.T, plannedTime string) *models.ScheduledMatch {
	t.Helper()
	var pt *string
	if plannedTime != "" {
		pt = &plannedTime
	}
	details, err := f.scheduled.Create(context.Background(), CreateScheduledMatchInput{
		TournamentID: testTournamentID,
		Day:          matchDay,
		PlannedTime:  pt,
		Pair1ID:      pairA,
		Pair2ID:      pairB,
	})
	require.NoError(t, err)
	return details.ScheduledMatch
}

// setPresence пишет отметки напрямую в хранилище, минуя пересчет статуса.
func (f *fixture) setPresence(t *testing.T, smID int, playerIDs ...int) {
	t.Helper()
	present := true
	for _, id := range playerIDs {
		_, err := f.store.UpdateScheduledMatchPlayer(context.Background(), smID, id, func(p *models.ScheduledMatchPlayer) {
			p.IsPresent = &present
		})
		require.NoError(t, err)
	}
}

func (f *fixture) checkInAll(t *testing.T, smID int) {
	t.Helper()
	for _, id := range []int{1, 2, 3, 4} {
		_, err := f.checkIns.CheckIn(context.Background(), smID, id, nil)
		require.NoError(t, err)
	}
}

func (f *fixture) get(t *testing.T, smID int) *models.ScheduledMatch {
	t.Helper()
	sm, err := f.store.GetScheduledMatch(context.Background(), smID)
	require.NoError(t, err)
	return sm
}

func (f *fixture) court(t *testing.T, id int) *models.Court {
	t.Helper()
	c, err := f.store.GetCourt(context.Background(), id)
	require.NoError(t, err)
	return c
}

var errInjected = errors.New("injected failure")

// failingStore подменяет отдельные операции хранилища, в том числе внутри транзакции.
type failingStore struct {
	repositories.Store
	failCreateMatch bool
	beforeListOpen  func()
}

func (f *failingStore) wrap(tx repositories.Store) *failingStore {
	return &failingStore{Store: tx, failCreateMatch: f.failCreateMatch, beforeListOpen: f.beforeListOpen}
}

func (f *failingStore) InTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	return f.Store.InTx(ctx, func(tx repositories.Store) error {
		return fn(f.wrap(tx))
	})
}

func (f *failingStore) CreateMatch(ctx context.Context, m *models.Match) error {
	if f.failCreateMatch {
		return errInjected
	}
	return f.Store.CreateMatch(ctx, m)
}

func (f *failingStore) ListOpenScheduledMatches(ctx context.Context) ([]*models.ScheduledMatch, error) {
	if f.beforeListOpen != nil {
		f.beforeListOpen()
	}
	return f.Store.ListOpenScheduledMatches(ctx)
}
