package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoAssign_TakesFirstAvailableCourt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	busy := f.addCourt(t, "Cancha 1", false)
	first := f.addCourt(t, "Cancha 2", true)
	second := f.addCourt(t, "Cancha 3", true)
	sm := f.schedule(t, "10:00")

	updated, err := f.courts.AutoAssign(ctx, sm.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CourtID)
	assert.Equal(t, first, *updated.CourtID)
	assert.Equal(t, models.ScheduledStatusAssigned, updated.Status)
	assert.False(t, f.court(t, first).IsAvailable)
	assert.True(t, f.court(t, second).IsAvailable)
	assert.False(t, f.court(t, busy).IsAvailable)
	assert.Equal(t, 1, f.publisher.Count(broadcast.EventCourtUpdated))
}

func TestAutoAssign_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCourt(t, "Cancha 1", false)
	sm := f.schedule(t, "10:00")

	_, err := f.courts.AutoAssign(ctx, sm.ID)
	assert.ErrorIs(t, err, ErrNoCourtsAvailable)
	assert.Equal(t, models.ScheduledStatusScheduled, f.get(t, sm.ID).Status)

	_, err = f.courts.AutoAssign(ctx, 999)
	assert.ErrorIs(t, err, ErrScheduledMatchNotFound)

	f.addCourt(t, "Cancha 2", true)
	_, err = f.courts.AutoAssign(ctx, sm.ID)
	require.NoError(t, err)
	_, err = f.courts.AutoAssign(ctx, sm.ID)
	assert.ErrorIs(t, err, ErrInvalidMatchState, "already assigned")
}

func TestAutoAssign_ConcurrentRequestsNeverShareACourt(t *testing.T) {
	for run := 0; run < 20; run++ {
		f := newFixture(t)
		courtID := f.addCourt(t, "Cancha única", true)
		a := f.schedule(t, "10:00")
		b := f.schedule(t, "10:30")

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success []int
			noCourt int
		)
		for _, id := range []int{a.ID, b.ID} {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				_, err := f.courts.AutoAssign(context.Background(), id)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					success = append(success, id)
				case assert.ErrorIs(t, err, ErrNoCourtsAvailable):
					noCourt++
				}
			}(id)
		}
		wg.Wait()

		require.Len(t, success, 1)
		assert.Equal(t, 1, noCourt)
		winner := f.get(t, success[0])
		assert.Equal(t, courtID, *winner.CourtID)
		loserID := a.ID
		if success[0] == a.ID {
			loserID = b.ID
		}
		assert.Nil(t, f.get(t, loserID).CourtID)
	}
}

func TestManualAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	free := f.addCourt(t, "Cancha 1", true)
	other := f.addCourt(t, "Cancha 2", true)
	sm := f.schedule(t, "10:00")

	updated, err := f.courts.ManualAssign(ctx, sm.ID, free)
	require.NoError(t, err)
	assert.Equal(t, free, *updated.CourtID)
	assert.Nil(t, updated.PreAssignedAt)

	// Переназначение освобождает прежний корт.
	updated, err = f.courts.ManualAssign(ctx, sm.ID, other)
	require.NoError(t, err)
	assert.Equal(t, other, *updated.CourtID)
	assert.True(t, f.court(t, free).IsAvailable)
	assert.False(t, f.court(t, other).IsAvailable)
}

func TestManualAssign_PreAssignmentToBusyCourt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID := f.addCourt(t, "Central", true)

	running := f.schedule(t, "09:00")
	f.checkInAll(t, running.ID)
	_, err := f.courts.StartFromReady(ctx, running.ID, &courtID)
	require.NoError(t, err)

	f.clock.Set(f.clock.Now().Add(45 * time.Minute))
	next := f.schedule(t, "10:00")
	updated, err := f.courts.ManualAssign(ctx, next.ID, courtID)
	require.NoError(t, err)
	require.NotNil(t, updated.PreAssignedAt)
	assert.True(t, f.clock.Now().Equal(*updated.PreAssignedAt))
	assert.Equal(t, models.ScheduledStatusAssigned, updated.Status)
}

func TestManualAssign_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	foreign := &models.Court{Name: "Otra sede", ClubID: 99, IsAvailable: true}
	f.store.AddCourt(foreign)
	sm := f.schedule(t, "10:00")

	_, err := f.courts.ManualAssign(ctx, sm.ID, foreign.ID)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.courts.ManualAssign(ctx, sm.ID, 12345)
	assert.ErrorIs(t, err, ErrCourtNotFound)

	_, err = f.scheduled.Cancel(ctx, sm.ID, "")
	require.NoError(t, err)
	courtID := f.addCourt(t, "Cancha 1", true)
	_, err = f.courts.ManualAssign(ctx, sm.ID, courtID)
	assert.ErrorIs(t, err, ErrInvalidMatchState)
	assert.True(t, f.court(t, courtID).IsAvailable)
}

func TestStartFromReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID := f.addCourt(t, "Cancha 1", true)
	sm := f.schedule(t, "10:00")
	f.checkInAll(t, sm.ID)
	f.publisher.Reset()

	match, err := f.courts.StartFromReady(ctx, sm.ID, &courtID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPlaying, match.Status)
	assert.Equal(t, courtID, *match.CourtID)
	assert.NotEmpty(t, match.AccessToken)
	assert.Equal(t, pairA, match.Pair1ID)
	assert.Equal(t, pairB, match.Pair2ID)

	got := f.get(t, sm.ID)
	assert.Equal(t, models.ScheduledStatusPlaying, got.Status)
	assert.Equal(t, match.ID, *got.MatchID)
	assert.Equal(t, courtID, *got.CourtID)
	assert.False(t, f.court(t, courtID).IsAvailable)
	assert.Equal(t, []broadcast.EventType{
		broadcast.EventCourtUpdated,
		broadcast.EventMatchStarted,
		broadcast.EventScheduledMatchUpdated,
	}, f.publisher.Types())

	byToken, err := f.matches.GetByAccessToken(ctx, match.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, match.ID, byToken.ID)
}

func TestStartFromReady_UsesAssignedCourt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID := f.addCourt(t, "Cancha 1", true)
	sm := f.schedule(t, "10:00")
	f.checkInAll(t, sm.ID)
	_, err := f.courts.AutoAssign(ctx, sm.ID)
	require.NoError(t, err)

	match, err := f.courts.StartFromReady(ctx, sm.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, courtID, *match.CourtID)
}

func TestStartFromReady_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID := f.addCourt(t, "Cancha 1", true)

	notReady := f.schedule(t, "10:00")
	_, err := f.courts.StartFromReady(ctx, notReady.ID, &courtID)
	assert.ErrorIs(t, err, ErrInvalidMatchState)

	first := f.schedule(t, "10:00")
	f.checkInAll(t, first.ID)
	_, err = f.courts.StartFromReady(ctx, first.ID, nil)
	assert.ErrorIs(t, err, ErrValidationFailed, "no court given and none assigned")

	_, err = f.courts.StartFromReady(ctx, first.ID, &courtID)
	require.NoError(t, err)

	second := f.schedule(t, "10:30")
	f.checkInAll(t, second.ID)
	_, err = f.courts.StartFromReady(ctx, second.ID, &courtID)
	assert.ErrorIs(t, err, ErrCourtNotAvailable)
	assert.Equal(t, models.ScheduledStatusReady, f.get(t, second.ID).Status)
}

func TestStartFromReady_MatchCreationFailureLeavesCourtFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID := f.addCourt(t, "Cancha 1", true)
	sm := f.schedule(t, "10:00")
	f.checkInAll(t, sm.ID)
	f.publisher.Reset()

	failing := &failingStore{Store: f.store, failCreateMatch: true}
	courts := NewCourtService(failing, f.publisher, f.logger, DefaultPreassignAfter, f.clock.Now)

	_, err := courts.StartFromReady(ctx, sm.ID, &courtID)
	require.ErrorIs(t, err, errInjected)

	assert.True(t, f.court(t, courtID).IsAvailable, "court must not leak")
	got := f.get(t, sm.ID)
	assert.Equal(t, models.ScheduledStatusReady, got.Status)
	assert.Nil(t, got.CourtID)
	assert.Nil(t, got.MatchID)
	assert.Empty(t, f.publisher.Types())
}

func TestUnassignCourt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID := f.addCourt(t, "Cancha 1", true)
	sm := f.schedule(t, "10:00")
	f.checkInAll(t, sm.ID)
	_, err := f.courts.AutoAssign(ctx, sm.ID)
	require.NoError(t, err)

	updated, err := f.courts.UnassignCourt(ctx, sm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledStatusReady, updated.Status)
	assert.Nil(t, updated.CourtID)
	assert.True(t, f.court(t, courtID).IsAvailable)

	_, err = f.courts.UnassignCourt(ctx, sm.ID)
	assert.ErrorIs(t, err, ErrInvalidMatchState)
}

func TestReleaseCourt(t *testing.T) {
	f := newFixture(t)
	courtID := f.addCourt(t, "Cancha 1", false)

	court, err := f.courts.ReleaseCourt(context.Background(), courtID)
	require.NoError(t, err)
	assert.True(t, court.IsAvailable)
	assert.Equal(t, 1, f.publisher.Count(broadcast.EventCourtUpdated))

	_, err = f.courts.ReleaseCourt(context.Background(), 404)
	assert.ErrorIs(t, err, ErrCourtNotFound)
}

func TestListAssignableCourts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	longRunning := f.addCourt(t, "Cancha 1", true)
	justStarted := f.addCourt(t, "Cancha 2", true)
	free := f.addCourt(t, "Cancha 3", true)
	f.addCourt(t, "Mantenimiento", false)

	early := f.schedule(t, "09:00")
	f.checkInAll(t, early.ID)
	_, err := f.courts.StartFromReady(ctx, early.ID, &longRunning)
	require.NoError(t, err)

	f.clock.Set(f.clock.Now().Add(35 * time.Minute))
	late := f.schedule(t, "09:30")
	f.checkInAll(t, late.ID)
	_, err = f.courts.StartFromReady(ctx, late.ID, &justStarted)
	require.NoError(t, err)

	f.clock.Set(f.clock.Now().Add(10 * time.Minute))
	courts, err := f.courts.ListAssignableCourts(ctx, testTournamentID)
	require.NoError(t, err)
	require.Len(t, courts, 2)

	assert.Equal(t, longRunning, courts[0].ID)
	assert.True(t, courts[0].Preassignable)
	assert.Equal(t, int64(45*60), courts[0].RunningSeconds)
	assert.Equal(t, free, courts[1].ID)
	assert.False(t, courts[1].Preassignable)

	_, err = f.courts.ListAssignableCourts(ctx, 77)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

// preAssigned запускает матч на единственном корте и предварительно назначает на тот же корт следующий.
func preAssigned(t *testing.T, f *fixture) (courtID int, live *models.Match, next *models.ScheduledMatch) {
	t.Helper()
	ctx := context.Background()
	courtID = f.addCourt(t, "Central", true)

	running := f.schedule(t, "09:00")
	f.checkInAll(t, running.ID)
	live, err := f.courts.StartFromReady(ctx, running.ID, &courtID)
	require.NoError(t, err)

	next = f.schedule(t, "10:00")
	next, err = f.courts.ManualAssign(ctx, next.ID, courtID)
	require.NoError(t, err)
	require.NotNil(t, next.PreAssignedAt)
	return courtID, live, next
}

func TestPreAssignment_ReleasePathsKeepCourtBusy(t *testing.T) {
	tests := []struct {
		name    string
		release func(t *testing.T, f *fixture, live *models.Match, next *models.ScheduledMatch)
	}{
		{
			name: "cancel pre-assigned match",
			release: func(t *testing.T, f *fixture, _ *models.Match, next *models.ScheduledMatch) {
				_, err := f.scheduled.Cancel(context.Background(), next.ID, "lluvia")
				require.NoError(t, err)
			},
		},
		{
			name: "delete pre-assigned match",
			release: func(t *testing.T, f *fixture, _ *models.Match, next *models.ScheduledMatch) {
				require.NoError(t, f.scheduled.Delete(context.Background(), next.ID))
			},
		},
		{
			name: "unassign pre-assigned match",
			release: func(t *testing.T, f *fixture, _ *models.Match, next *models.ScheduledMatch) {
				_, err := f.courts.UnassignCourt(context.Background(), next.ID)
				require.NoError(t, err)
			},
		},
		{
			name: "move pre-assigned match to another court",
			release: func(t *testing.T, f *fixture, _ *models.Match, next *models.ScheduledMatch) {
				other := f.addCourt(t, "Cancha 2", true)
				_, err := f.courts.ManualAssign(context.Background(), next.ID, other)
				require.NoError(t, err)
			},
		},
		{
			name: "finish live match",
			release: func(t *testing.T, f *fixture, live *models.Match, _ *models.ScheduledMatch) {
				_, err := f.matches.FinishMatch(context.Background(), live.ID, FinishMatchInput{
					Score: models.Score{{6, 2}, {6, 2}},
				})
				require.NoError(t, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			courtID, live, next := preAssigned(t, f)

			tt.release(t, f, live, next)

			assert.False(t, f.court(t, courtID).IsAvailable, "court still has another match on it")
			third := f.schedule(t, "11:00")
			_, err := f.courts.AutoAssign(context.Background(), third.ID)
			assert.ErrorIs(t, err, ErrNoCourtsAvailable)
			assert.Nil(t, f.get(t, third.ID).CourtID)
		})
	}
}

func TestPreAssignment_CourtFreedAfterLastReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID, live, next := preAssigned(t, f)

	_, err := f.matches.FinishMatch(ctx, live.ID, FinishMatchInput{Score: models.Score{{6, 2}, {6, 2}}})
	require.NoError(t, err)
	assert.False(t, f.court(t, courtID).IsAvailable)
	assert.Equal(t, models.ScheduledStatusAssigned, f.get(t, next.ID).Status)

	_, err = f.scheduled.Cancel(ctx, next.ID, "no show")
	require.NoError(t, err)
	assert.True(t, f.court(t, courtID).IsAvailable)

	third := f.schedule(t, "11:00")
	assigned, err := f.courts.AutoAssign(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, courtID, *assigned.CourtID)
}

func TestPreAssignment_StartsOnceLiveMatchFinishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID, live, next := preAssigned(t, f)
	f.checkInAll(t, next.ID)

	_, err := f.courts.StartFromReady(ctx, next.ID, nil)
	assert.ErrorIs(t, err, ErrCourtNotAvailable)

	_, err = f.matches.FinishMatch(ctx, live.ID, FinishMatchInput{Score: models.Score{{6, 2}, {6, 2}}})
	require.NoError(t, err)

	started, err := f.courts.StartFromReady(ctx, next.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, courtID, *started.CourtID)
	assert.False(t, f.court(t, courtID).IsAvailable)
}

func TestManualAssign_CourtHeldWithoutLiveMatchIsNotPreAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	courtID := f.addCourt(t, "Central", true)

	first := f.schedule(t, "09:00")
	_, err := f.courts.ManualAssign(ctx, first.ID, courtID)
	require.NoError(t, err)

	second := f.schedule(t, "10:00")
	updated, err := f.courts.ManualAssign(ctx, second.ID, courtID)
	require.NoError(t, err)
	assert.Nil(t, updated.PreAssignedAt)
	assert.Equal(t, models.ScheduledStatusAssigned, updated.Status)

	// Корт отпускается только вместе с последним матчем.
	_, err = f.courts.UnassignCourt(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, f.court(t, courtID).IsAvailable)
	_, err = f.courts.UnassignCourt(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, f.court(t, courtID).IsAvailable)
}

func TestReleaseCourt_RefusesReferencedCourt(t *testing.T) {
	f := newFixture(t)
	courtID, _, _ := preAssigned(t, f)
	f.publisher.Reset()

	_, err := f.courts.ReleaseCourt(context.Background(), courtID)
	assert.ErrorIs(t, err, ErrCourtNotAvailable)
	assert.False(t, f.court(t, courtID).IsAvailable)
	assert.Zero(t, f.publisher.Count(broadcast.EventCourtUpdated))
}
