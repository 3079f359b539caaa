package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/catalog"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/schedule"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

const (
	testDate     = "2024-01-10"
	testShift    = "s1"
	testTimeSlot = "0700-1500"
)

// testClock is a hand-advanced clock injected into the engine
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// countingNotifier records how many commits triggered a push
type countingNotifier struct {
	count int
}

func (n *countingNotifier) Notify() { n.count++ }

// failingStore wraps a real store and fails every Commit while armed
type failingStore struct {
	storage.Store
	fail bool
}

func (s *failingStore) Commit(ctx context.Context, tx *storage.Tx) error {
	if s.fail {
		return errors.New("simulated commit failure")
	}
	return s.Store.Commit(ctx, tx)
}

func newTestEngine(t *testing.T, agentIDs ...string) (*Engine, *storage.MemoryStore, *testClock) {
	t.Helper()

	store := storage.NewMemoryStore()
	clock := newTestClock()
	e := New(store, catalog.Default(), nil, time.UTC, zerolog.Nop())
	e.now = clock.Now

	seedAgents(t, store, agentIDs...)
	return e, store, clock
}

func seedAgents(t *testing.T, store storage.Store, agentIDs ...string) {
	t.Helper()

	tx := storage.NewTx()
	for _, id := range agentIDs {
		tx.PutAgent(types.Agent{ID: id, Name: "Agent " + id})
	}
	require.NoError(t, store.Commit(context.Background(), tx))
}

func assignReq(agentID string, breakTypeIndex int) types.AssignRequest {
	return types.AssignRequest{
		AgentID:        agentID,
		ShiftID:        testShift,
		TimeSlotID:     testTimeSlot,
		BreakTypeIndex: breakTypeIndex,
	}
}

func statusReq(agentID string, breakTypeIndex int, status types.BreakStatus) types.StatusChangeRequest {
	return types.StatusChangeRequest{
		AgentID:        agentID,
		ShiftID:        testShift,
		TimeSlotID:     testTimeSlot,
		BreakTypeIndex: breakTypeIndex,
		NewStatus:      status,
	}
}

func TestTodayUsesConfiguredLocation(t *testing.T) {
	// The two zones are 26 hours apart, so at any wall-clock instant at
	// least one of them disagrees with the host-local date. Both passing
	// proves the day key comes from the configured location.
	for _, loc := range []*time.Location{
		time.FixedZone("UTC+14", 14*3600),
		time.FixedZone("UTC-12", -12*3600),
	} {
		e := New(storage.NewMemoryStore(), catalog.Default(), nil, loc, zerolog.Nop())
		assert.Equal(t, time.Now().In(loc).Format(schedule.DateFormat), e.Today(), loc.String())
	}
}

func TestAssignUnknownAgent(t *testing.T) {
	e, _, _ := newTestEngine(t)

	err := e.Assign(context.Background(), assignReq("ghost", 0))
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestAssignCreatesSlotLazily(t *testing.T) {
	e, store, _ := newTestEngine(t, "a1")
	ctx := context.Background()

	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))

	slot, err := store.FindSlot(ctx, testDate, testShift, testTimeSlot, 0)
	require.NoError(t, err)
	assert.Equal(t, types.StatusScheduled, slot.Status)
	assert.Equal(t, []string{"a1"}, slot.AssignedAgentIDs)
	assert.Equal(t, 10, slot.MaxAgents)

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, agent.AssignedBreaks, 1)
	assert.Equal(t, slot.ID, agent.AssignedBreaks[0].BreakSlotID)
	assert.Equal(t, types.StatusScheduled, agent.AssignedBreaks[0].Status)
	assert.Equal(t, testShift, agent.CurrentShiftID)
}

func TestAssignUnknownShift(t *testing.T) {
	e, _, _ := newTestEngine(t, "a1")

	err := e.Assign(context.Background(), types.AssignRequest{
		AgentID:        "a1",
		ShiftID:        "no-such-shift",
		TimeSlotID:     testTimeSlot,
		BreakTypeIndex: 0,
	})
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestAssignIdempotent(t *testing.T) {
	e, store, _ := newTestEngine(t, "a1")
	ctx := context.Background()

	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))

	slot, err := store.FindSlot(ctx, testDate, testShift, testTimeSlot, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, slot.AssignedAgentIDs, "re-assign must not duplicate the membership")

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, agent.AssignedBreaks, 1)
}

func TestAssignCapacity(t *testing.T) {
	ids := make([]string, 0, 11)
	for i := 1; i <= 11; i++ {
		ids = append(ids, fmt.Sprintf("a%d", i))
	}
	e, store, _ := newTestEngine(t, ids...)
	ctx := context.Background()

	for _, id := range ids[:10] {
		require.NoError(t, e.Assign(ctx, assignReq(id, 0)))
	}

	err := e.Assign(ctx, assignReq("a11", 0))
	assert.ErrorIs(t, err, ErrSlotFull)

	slot, err := store.FindSlot(ctx, testDate, testShift, testTimeSlot, 0)
	require.NoError(t, err)
	assert.Len(t, slot.AssignedAgentIDs, 10, "rejected assignment must not change the member set")
	assert.NotContains(t, slot.AssignedAgentIDs, "a11")

	agent, err := store.GetAgent(ctx, "a11")
	require.NoError(t, err)
	assert.Empty(t, agent.AssignedBreaks)
}

func TestAssignMovesBetweenTimeSlots(t *testing.T) {
	e, store, _ := newTestEngine(t, "a1", "a2")
	ctx := context.Background()

	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.Assign(ctx, assignReq("a2", 0)))

	// Same shift and break type, different scheduling window.
	require.NoError(t, e.Assign(ctx, types.AssignRequest{
		AgentID:        "a1",
		ShiftID:        testShift,
		TimeSlotID:     "1500-2300",
		BreakTypeIndex: 0,
	}))

	old, err := store.FindSlot(ctx, testDate, testShift, testTimeSlot, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, old.AssignedAgentIDs, "agent must be pulled out of the old slot")

	moved, err := store.FindSlot(ctx, testDate, testShift, "1500-2300", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, moved.AssignedAgentIDs)

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, agent.AssignedBreaks, 1, "exactly one assignment per shift and break type")
	assert.Equal(t, "1500-2300", agent.AssignedBreaks[0].TimeSlotID)
	assert.Equal(t, moved.ID, agent.AssignedBreaks[0].BreakSlotID)
}

func TestAssignMoveEmptiesOldSlot(t *testing.T) {
	e, store, _ := newTestEngine(t, "a1")
	ctx := context.Background()

	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.Assign(ctx, types.AssignRequest{
		AgentID:        "a1",
		ShiftID:        testShift,
		TimeSlotID:     "1500-2300",
		BreakTypeIndex: 0,
	}))

	old, err := store.FindSlot(ctx, testDate, testShift, testTimeSlot, 0)
	require.NoError(t, err)
	assert.Empty(t, old.AssignedAgentIDs)
	assert.Equal(t, types.StatusAvailable, old.Status, "emptied slot reverts to available")
	assert.Nil(t, old.ActualStartTime)
	assert.Nil(t, old.ActualEndTime)
}

func TestAssignDifferentBreakTypesCoexist(t *testing.T) {
	e, store, _ := newTestEngine(t, "a1")
	ctx := context.Background()

	for idx := 0; idx < 3; idx++ {
		require.NoError(t, e.Assign(ctx, assignReq("a1", idx)))
	}

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, agent.AssignedBreaks, 3)

	for idx := 0; idx < 3; idx++ {
		slot, err := store.FindSlot(ctx, testDate, testShift, testTimeSlot, idx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, slot.AssignedAgentIDs)
	}
}

func TestAssignCommitFailureLeavesStateUnchanged(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAgents(t, store, "a1")
	wrapped := &failingStore{Store: store, fail: true}

	clock := newTestClock()
	e := New(wrapped, catalog.Default(), nil, time.UTC, zerolog.Nop())
	e.now = clock.Now

	ctx := context.Background()
	err := e.Assign(ctx, assignReq("a1", 0))
	require.Error(t, err)

	_, err = store.FindSlot(ctx, testDate, testShift, testTimeSlot, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound, "failed commit must not leave a slot behind")

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, agent.AssignedBreaks)
	assert.Empty(t, agent.CurrentShiftID)

	// Same request succeeds once the store recovers.
	wrapped.fail = false
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
}

func TestSetStatusValidation(t *testing.T) {
	e, _, _ := newTestEngine(t, "a1")
	ctx := context.Background()
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))

	tests := []struct {
		name    string
		req     types.StatusChangeRequest
		wantErr error
	}{
		{"scheduled is not a target", statusReq("a1", 0, types.StatusScheduled), ErrInvalidTransition},
		{"available is not a target", statusReq("a1", 0, types.StatusAvailable), ErrInvalidTransition},
		{"unknown agent", statusReq("ghost", 0, types.StatusActive), ErrAgentNotFound},
		{"no matching assignment", statusReq("a1", 2, types.StatusActive), ErrAssignmentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, e.SetStatus(ctx, tt.req), tt.wantErr)
		})
	}
}

func TestSetStatusActive(t *testing.T) {
	e, store, clock := newTestEngine(t, "a1")
	ctx := context.Background()
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))

	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)))

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, agent.IsOnBreak)
	require.NotNil(t, agent.CurrentBreakStartTime)
	assert.Equal(t, clock.Now(), *agent.CurrentBreakStartTime)
	assert.Equal(t, agent.AssignedBreaks[0].BreakSlotID, agent.CurrentBreakID)
	assert.Equal(t, types.StatusActive, agent.AssignedBreaks[0].Status)

	slot, err := store.GetSlot(ctx, testDate, agent.CurrentBreakID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, slot.Status)
	require.NotNil(t, slot.ActualStartTime)
	assert.Equal(t, clock.Now(), *slot.ActualStartTime)
	assert.Nil(t, slot.ActualEndTime)

	event, err := store.GetLastEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Agent a1", event.AgentName)
	assert.Equal(t, "active", event.Action)
}

func TestSetStatusRepeatIsNoOp(t *testing.T) {
	e, store, clock := newTestEngine(t, "a1")
	ctx := context.Background()
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)))

	started := clock.Now()
	clock.Advance(5 * time.Minute)
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)))

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, agent.CurrentBreakStartTime)
	assert.Equal(t, started, *agent.CurrentBreakStartTime, "repeated active must not restamp the start time")
}

func TestSetStatusDoneAccumulatesDuration(t *testing.T) {
	e, store, clock := newTestEngine(t, "a1")
	ctx := context.Background()
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)))

	clock.Advance(900 * time.Second)
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusDone)))

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, agent.IsOnBreak)
	assert.Nil(t, agent.CurrentBreakStartTime)
	assert.Empty(t, agent.CurrentBreakID)
	assert.Equal(t, int64(900), agent.TotalBreakDurationToday)
	assert.Equal(t, types.StatusDone, agent.AssignedBreaks[0].Status)

	slot, err := store.GetSlot(ctx, testDate, agent.AssignedBreaks[0].BreakSlotID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDone, slot.Status)
	require.NotNil(t, slot.ActualEndTime)
	assert.Equal(t, clock.Now(), *slot.ActualEndTime)

	event, err := store.GetLastEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "done", event.Action)
}

func TestSetStatusScheduledStraightToDone(t *testing.T) {
	e, store, _ := newTestEngine(t, "a1")
	ctx := context.Background()
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))

	// No active phase: the break is closed with zero elapsed time and the
	// agent does not end up stuck on break.
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusDone)))

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, agent.IsOnBreak)
	assert.Equal(t, int64(0), agent.TotalBreakDurationToday)
	assert.Equal(t, types.StatusDone, agent.AssignedBreaks[0].Status)
}

func TestSetStatusDoneIsTerminal(t *testing.T) {
	e, _, _ := newTestEngine(t, "a1")
	ctx := context.Background()
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusDone)))

	assert.ErrorIs(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)), ErrInvalidTransition)
	assert.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusDone)), "repeating done is a no-op")
}

func TestThirdDoneBreakReleasesShift(t *testing.T) {
	e, store, clock := newTestEngine(t, "a1")
	ctx := context.Background()

	for idx := 0; idx < 3; idx++ {
		require.NoError(t, e.Assign(ctx, assignReq("a1", idx)))
	}

	for idx := 0; idx < 3; idx++ {
		require.NoError(t, e.SetStatus(ctx, statusReq("a1", idx, types.StatusActive)))
		clock.Advance(15 * time.Minute)
		require.NoError(t, e.SetStatus(ctx, statusReq("a1", idx, types.StatusDone)))

		agent, err := store.GetAgent(ctx, "a1")
		require.NoError(t, err)
		if idx < 2 {
			assert.Equal(t, testShift, agent.CurrentShiftID, "shift binding holds until the third break is done")
		} else {
			assert.Empty(t, agent.CurrentShiftID, "third completed break releases the shift binding")
		}
	}

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(3*900), agent.TotalBreakDurationToday)
}

func TestEnsureScheduleIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	cat := catalog.Default()
	want := len(cat.Shifts) * len(cat.BreakDefinitions)
	generatedBefore := metrics.Get().SchedulesGeneratedTotal

	first, err := e.EnsureSchedule(ctx, testDate)
	require.NoError(t, err)
	assert.Len(t, first, want)
	assert.Equal(t, generatedBefore+1, metrics.Get().SchedulesGeneratedTotal)

	second, err := e.EnsureSchedule(ctx, testDate)
	require.NoError(t, err)
	assert.Len(t, second, want, "existing schedule must not be regenerated")
	assert.Equal(t, generatedBefore+1, metrics.Get().SchedulesGeneratedTotal, "serving an existing schedule is not a generation")
}

func TestEnsureScheduleBadDate(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.EnsureSchedule(context.Background(), "10.01.2024")
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestCheckAndResetIdempotentPerDay(t *testing.T) {
	e, store, _ := newTestEngine(t, "a1")
	ctx := context.Background()

	ran, err := e.CheckAndReset(ctx, testDate)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = e.CheckAndReset(ctx, testDate)
	require.NoError(t, err)
	assert.False(t, ran, "second check on the same day must be a no-op")

	marker, err := store.GetResetMarker(ctx)
	require.NoError(t, err)
	assert.Equal(t, testDate, marker.LastResetDate)
}

func TestResetClearsAgentsAndSlots(t *testing.T) {
	e, store, clock := newTestEngine(t, "a1", "a2")
	ctx := context.Background()

	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.Assign(ctx, assignReq("a2", 1)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)))

	// Roll over to the next day.
	clock.Advance(24 * time.Hour)
	nextDay := e.Today()
	require.Equal(t, "2024-01-11", nextDay)

	ran, err := e.CheckAndReset(ctx, nextDay)
	require.NoError(t, err)
	require.True(t, ran)

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	for _, agent := range agents {
		assert.False(t, agent.IsOnBreak)
		assert.Nil(t, agent.CurrentBreakStartTime)
		assert.Empty(t, agent.CurrentBreakID)
		assert.Empty(t, agent.CurrentShiftID)
		assert.Empty(t, agent.AssignedBreaks)
		assert.Zero(t, agent.TotalBreakDurationToday)
	}

	stale, err := store.ListSlots(ctx, testDate)
	require.NoError(t, err)
	assert.Empty(t, stale, "previous day's slots must be deleted")

	event, err := store.GetLastEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "system", event.AgentName)
	assert.Equal(t, "reset", event.Action)
}

func TestResetFailureLeavesMarkerUnsetForRetry(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAgents(t, store, "a1")
	wrapped := &failingStore{Store: store, fail: true}

	clock := newTestClock()
	e := New(wrapped, catalog.Default(), nil, time.UTC, zerolog.Nop())
	e.now = clock.Now

	ctx := context.Background()
	_, err := e.CheckAndReset(ctx, testDate)
	require.Error(t, err)

	_, err = store.GetResetMarker(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound, "failed reset must not write the marker")

	wrapped.fail = false
	ran, err := e.CheckAndReset(ctx, testDate)
	require.NoError(t, err)
	assert.True(t, ran, "reset retries once the store recovers")
}

func TestNotifierFiresOnCommits(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAgents(t, store, "a1")

	notifier := &countingNotifier{}
	clock := newTestClock()
	e := New(store, catalog.Default(), notifier, time.UTC, zerolog.Nop())
	e.now = clock.Now

	ctx := context.Background()
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusDone)))
	assert.Equal(t, 3, notifier.count)

	// No-ops must not push.
	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusDone)))
	assert.Equal(t, 3, notifier.count)
}

func TestFullBreakLifecycle(t *testing.T) {
	e, store, clock := newTestEngine(t, "a1")
	ctx := context.Background()

	_, err := e.EnsureSchedule(ctx, testDate)
	require.NoError(t, err)

	require.NoError(t, e.Assign(ctx, assignReq("a1", 0)))
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusActive)))
	clock.Advance(900 * time.Second)
	require.NoError(t, e.SetStatus(ctx, statusReq("a1", 0, types.StatusDone)))

	agent, err := store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), agent.TotalBreakDurationToday)
	assert.False(t, agent.IsOnBreak)

	// Next day everything starts clean.
	clock.Advance(24 * time.Hour)
	ran, err := e.CheckAndReset(ctx, e.Today())
	require.NoError(t, err)
	require.True(t, ran)

	agent, err = store.GetAgent(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, agent.TotalBreakDurationToday)
	assert.Empty(t, agent.AssignedBreaks)
}
