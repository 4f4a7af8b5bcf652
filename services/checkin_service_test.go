package services

import (
	"context"
	"testing"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIn_ReadyCoupling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sm := f.schedule(t, "10:00")
	referee := 900

	for i, playerID := range []int{1, 2, 3} {
		res, err := f.checkIns.CheckIn(ctx, sm.ID, playerID, &referee)
		require.NoError(t, err, "check-in #%d", i+1)
		assert.Equal(t, models.ScheduledStatusScheduled, res.ScheduledMatch.Status)
		assert.False(t, res.StatusChanged)
	}

	res, err := f.checkIns.CheckIn(ctx, sm.ID, 4, &referee)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledStatusReady, res.ScheduledMatch.Status)
	assert.True(t, res.StatusChanged)
	require.Len(t, res.Players, 4)
	for _, p := range res.Players {
		assert.True(t, p.Present())
		assert.NotNil(t, p.CheckInTime)
		assert.Equal(t, &referee, p.CheckedInBy)
	}

	res, err = f.checkIns.CheckOut(ctx, sm.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledStatusScheduled, res.ScheduledMatch.Status)
	assert.True(t, res.StatusChanged)

	res, err = f.checkIns.CheckIn(ctx, sm.ID, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledStatusReady, res.ScheduledMatch.Status)

	res, err = f.checkIns.ResetStatus(ctx, sm.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledStatusScheduled, res.ScheduledMatch.Status)
	for _, p := range res.Players {
		if p.PlayerID == 3 {
			assert.Nil(t, p.IsPresent)
			assert.Nil(t, p.CheckInTime)
			assert.Nil(t, p.CheckedInBy)
		}
	}
}

func TestCheckOut_MarksAbsent(t *testing.T) {
	f := newFixture(t)
	sm := f.schedule(t, "10:00")

	res, err := f.checkIns.CheckOut(context.Background(), sm.ID, 3)
	require.NoError(t, err)
	for _, p := range res.Players {
		if p.PlayerID == 3 {
			require.NotNil(t, p.IsPresent)
			assert.False(t, *p.IsPresent)
		} else {
			assert.Nil(t, p.IsPresent)
		}
	}
}

func TestCheckIn_AssignedMatchKeepsCourt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addCourt(t, "Cancha 1", true)
	sm := f.schedule(t, "10:00")
	f.checkInAll(t, sm.ID)
	_, err := f.courts.AutoAssign(ctx, sm.ID)
	require.NoError(t, err)

	res, err := f.checkIns.CheckOut(ctx, sm.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduledStatusAssigned, res.ScheduledMatch.Status)
	assert.NotNil(t, res.ScheduledMatch.CourtID)
}

func TestCheckIn_PublishesPairUpdate(t *testing.T) {
	f := newFixture(t)
	sm := f.schedule(t, "10:00")
	f.publisher.Reset()

	_, err := f.checkIns.CheckIn(context.Background(), sm.ID, 3, nil)
	require.NoError(t, err)
	require.Equal(t, []broadcast.EventType{broadcast.EventPairUpdated, broadcast.EventScheduledMatchUpdated}, f.publisher.Types())

	data := f.publisher.events[0].Data.(map[string]interface{})
	assert.Equal(t, pairB, data["pair_id"])
	assert.Len(t, data["players"], 2)
}

func TestCheckIn_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sm := f.schedule(t, "10:00")

	_, err := f.checkIns.CheckIn(ctx, sm.ID, 42, nil)
	assert.ErrorIs(t, err, ErrPlayerNotInMatch)

	_, err = f.checkIns.CheckIn(ctx, 999, 1, nil)
	assert.ErrorIs(t, err, ErrScheduledMatchNotFound)

	_, err = f.scheduled.Cancel(ctx, sm.ID, "")
	require.NoError(t, err)
	_, err = f.checkIns.CheckIn(ctx, sm.ID, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidMatchState)
}
