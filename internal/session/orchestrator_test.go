// internal/session/orchestrator_test.go
package session

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openholdem/poker-service/internal/table"
)

type fakeEvent struct {
	name    string
	payload roomEvent
}

type fakeConn struct {
	id   string
	uid  string
	name string

	mu     sync.Mutex
	events []fakeEvent
	rooms  []string
}

func (c *fakeConn) ID() string   { return c.id }
func (c *fakeConn) UID() string  { return c.uid }
func (c *fakeConn) Name() string { return c.name }

func (c *fakeConn) Emit(event string, payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev := fakeEvent{name: event}
	if re, ok := payload.(roomEvent); ok {
		ev.payload = re
	}
	c.events = append(c.events, ev)
}

func (c *fakeConn) Join(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = append(c.rooms, room)
}

func (c *fakeConn) Leave(room string) {}

func (c *fakeConn) eventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.events))
	for i, ev := range c.events {
		names[i] = ev.name
	}
	return names
}

func (c *fakeConn) firstIndex(name string) int {
	for i, n := range c.eventNames() {
		if n == name {
			return i
		}
	}
	return -1
}

func (c *fakeConn) lastEvent(name string) (fakeEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].name == name {
			return c.events[i], true
		}
	}
	return fakeEvent{}, false
}

func (c *fakeConn) count(name string) int {
	n := 0
	for _, ev := range c.eventNames() {
		if ev == name {
			n++
		}
	}
	return n
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *table.Table) {
	t.Helper()
	store := table.NewStore()
	tbl := table.NewTable("t1", table.ForcedBets{SmallBlind: 1, BigBlind: 2})
	store.Add(tbl)
	o := NewOrchestrator(quietLogger(), store, Options{
		ActionTimeout:  time.Hour,
		ReconnectGrace: time.Hour,
	})
	return o, tbl
}

func raw(format string, args ...interface{}) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(format, args...))
}

// seatTwo joins, reserves, and seats two users at seats 0 and 1, which
// starts the first hand.
func seatTwo(t *testing.T, o *Orchestrator) (*fakeConn, *fakeConn) {
	t.Helper()
	c1 := &fakeConn{id: "c1", uid: "u1", name: "alice"}
	c2 := &fakeConn{id: "c2", uid: "u2", name: "bob"}

	_, err := o.Join(c1, raw(`{"id":"t1"}`))
	require.NoError(t, err)
	_, err = o.Join(c2, raw(`{"id":"t1"}`))
	require.NoError(t, err)

	_, err = o.ReserveSeat(c1, raw(`{"id":"t1","index":0}`))
	require.NoError(t, err)
	_, err = o.ReserveSeat(c2, raw(`{"id":"t1","index":1}`))
	require.NoError(t, err)

	_, err = o.SitDown(c1, raw(`{"id":"t1","name":"alice","buyIn":300,"avatarStyle":"robot"}`))
	require.NoError(t, err)
	_, err = o.SitDown(c2, raw(`{"id":"t1","name":"bob","buyIn":300,"avatarStyle":"cat"}`))
	require.NoError(t, err)
	return c1, c2
}

func TestJoinUnknownTable(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	c := &fakeConn{id: "c1", uid: "u1"}
	_, err := o.Join(c, raw(`{"id":"nope"}`))
	assert.Error(t, err)
}

func TestReserveSeatRequiresIdentity(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	c := &fakeConn{id: "c1"}
	_, err := o.Join(c, raw(`{"id":"t1"}`))
	require.NoError(t, err)
	_, err = o.ReserveSeat(c, raw(`{"id":"t1","index":0}`))
	assert.EqualError(t, err, "authentication required")
}

func TestEndToEndTwoPlayers(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	c1, c2 := seatTwo(t, o)

	// Seating the second player starts the hand for the whole room.
	assert.Equal(t, 1, c1.count("startHand"))
	assert.Equal(t, 1, c2.count("startHand"))
	require.True(t, tbl.IsHandInProgress())

	// Heads up the button posts the small blind and acts first.
	require.Equal(t, 0, tbl.PlayerToAct())

	// Out of turn: rejected, no mutation, no broadcast.
	before := c1.count("actionTaken")
	_, err := o.ActionTaken(c2, raw(`{"id":"t1","action":"call"}`))
	assert.EqualError(t, err, "acting out of turn")
	assert.Equal(t, 0, tbl.PlayerToAct())
	assert.Equal(t, before, c1.count("actionTaken"))

	// In turn: the action lands and the turn advances.
	reply, err := o.ActionTaken(c1, raw(`{"id":"t1","action":"call"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, c2.count("actionTaken"))

	br, ok := reply.(baseResponse)
	require.True(t, ok)
	assert.Equal(t, 0, br.SeatIndex)
	assert.Len(t, br.HoleCards, 2)
	require.NotNil(t, br.Table.PlayerToAct)
	assert.Equal(t, 1, *br.Table.PlayerToAct)
}

func TestBroadcastsArePerRecipient(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	c1, c2 := seatTwo(t, o)

	ev1, ok := c1.lastEvent("startHand")
	require.True(t, ok)
	ev2, ok := c2.lastEvent("startHand")
	require.True(t, ok)

	assert.Equal(t, 0, ev1.payload.SeatIndex)
	assert.Equal(t, 1, ev2.payload.SeatIndex)
	assert.Len(t, ev1.payload.HoleCards, 2)
	assert.Len(t, ev2.payload.HoleCards, 2)
	assert.NotEqual(t, ev1.payload.HoleCards, ev2.payload.HoleCards)
}

func TestSitDownValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"zero buy-in", `{"id":"t1","name":"alice","buyIn":0,"avatarStyle":"robot"}`, "buy-in must be between 1 and 99999"},
		{"too large buy-in", `{"id":"t1","name":"alice","buyIn":100000,"avatarStyle":"robot"}`, "buy-in must be between 1 and 99999"},
		{"non-numeric buy-in", `{"id":"t1","name":"alice","buyIn":"abc","avatarStyle":"robot"}`, "malformed sitDown payload"},
		{"short name", `{"id":"t1","name":" a ","buyIn":100,"avatarStyle":"robot"}`, "display name must be at least 2 characters"},
		{"missing avatar", `{"id":"t1","name":"alice","buyIn":100,"avatarStyle":""}`, "avatar style is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, tbl := newTestOrchestrator(t)
			c := &fakeConn{id: "c1", uid: "u1"}
			_, err := o.Join(c, raw(`{"id":"t1"}`))
			require.NoError(t, err)
			_, err = o.ReserveSeat(c, raw(`{"id":"t1","index":0}`))
			require.NoError(t, err)

			_, err = o.SitDown(c, json.RawMessage(tc.payload))
			require.Error(t, err)
			assert.EqualError(t, err, tc.wantErr)
			assert.Nil(t, tbl.Seats()[0], "no seating on rejection")
		})
	}
}

func TestSitDownBuyInBoundaries(t *testing.T) {
	for _, buyIn := range []int{1, 99999} {
		t.Run(fmt.Sprintf("buyIn=%d", buyIn), func(t *testing.T) {
			o, tbl := newTestOrchestrator(t)
			c := &fakeConn{id: "c1", uid: "u1"}
			_, err := o.Join(c, raw(`{"id":"t1"}`))
			require.NoError(t, err)
			_, err = o.ReserveSeat(c, raw(`{"id":"t1","index":0}`))
			require.NoError(t, err)

			_, err = o.SitDown(c, raw(`{"id":"t1","name":"alice","buyIn":%d,"avatarStyle":"robot"}`, buyIn))
			require.NoError(t, err)
			require.NotNil(t, tbl.Seats()[0])
			assert.Equal(t, buyIn, tbl.Seats()[0].Stack)
		})
	}
}

func TestSitDownRequiresReservation(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	c := &fakeConn{id: "c1", uid: "u1"}
	_, err := o.Join(c, raw(`{"id":"t1"}`))
	require.NoError(t, err)
	_, err = o.SitDown(c, raw(`{"id":"t1","name":"alice","buyIn":100,"avatarStyle":"robot"}`))
	assert.EqualError(t, err, "reserve a seat before sitting down")
}

func TestStandUpReleasesSeatAndReservation(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	c1, c2 := seatTwo(t, o)

	_, err := o.StandUp(c2, raw(`{"id":"t1"}`))
	require.NoError(t, err)

	assert.Nil(t, tbl.Seats()[1])
	assert.Nil(t, tbl.Reservations()[1])
	assert.Equal(t, 1, c1.count("standUp"))
	// Standing up mid-hand folds the seat out and ends the hand.
	assert.False(t, tbl.IsHandInProgress())
}

func TestCascadeOrdering(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	c1, c2 := seatTwo(t, o)

	act := func(c *fakeConn, action string) {
		t.Helper()
		_, err := o.ActionTaken(c, raw(`{"id":"t1","action":"%s"}`, action))
		require.NoError(t, err)
	}

	// Preflop: button completes, big blind checks.
	act(c1, "call")
	act(c2, "check")
	assert.Equal(t, 1, c1.count("bettingRoundEnd"))

	// Flop, turn, river: big blind acts first heads up.
	for range []int{0, 1, 2} {
		act(c2, "check")
		act(c1, "check")
	}

	assert.Equal(t, 4, c1.count("bettingRoundEnd"))
	assert.Equal(t, 1, c1.count("showdown"))
	assert.Equal(t, 2, c1.count("startHand"), "a fresh hand starts after the showdown")

	lastRoundEnd := -1
	for i, name := range c1.eventNames() {
		if name == "bettingRoundEnd" {
			lastRoundEnd = i
		}
	}
	showdownAt := c1.firstIndex("showdown")
	secondHandAt := -1
	seen := 0
	for i, name := range c1.eventNames() {
		if name == "startHand" {
			seen++
			if seen == 2 {
				secondHandAt = i
			}
		}
	}
	require.True(t, lastRoundEnd < showdownAt, "round end precedes showdown")
	require.True(t, showdownAt < secondHandAt, "showdown precedes the next hand")
	assert.True(t, tbl.IsHandInProgress())
}

func TestActionTimerForcesFoldThroughSamePath(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	c1, _ := seatTwo(t, o)

	o.mu.Lock()
	require.NotNil(t, o.actionTimers["t1"], "timer armed once the hand starts")
	seq := o.actionSeq["t1"]
	o.mu.Unlock()

	o.actionTimerFired("t1", seq)

	ev, ok := c1.lastEvent("actionTaken")
	require.True(t, ok)
	assert.Equal(t, "fold", ev.payload.Action)
	require.NotNil(t, ev.payload.Actor)
	assert.Equal(t, 0, *ev.payload.Actor)

	// Folding heads up ends the hand and deals the next one.
	assert.Equal(t, 1, c1.count("showdown"))
	assert.Equal(t, 2, c1.count("startHand"))
	assert.True(t, tbl.IsHandInProgress())
}

func TestStaleActionTimerIsIgnored(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	c1, _ := seatTwo(t, o)

	o.mu.Lock()
	seq := o.actionSeq["t1"]
	o.mu.Unlock()

	// A real action supersedes the armed timer.
	_, err := o.ActionTaken(c1, raw(`{"id":"t1","action":"call"}`))
	require.NoError(t, err)

	before := c1.count("actionTaken")
	o.actionTimerFired("t1", seq)
	assert.Equal(t, before, c1.count("actionTaken"), "superseded timer does nothing")
	assert.Equal(t, 1, tbl.PlayerToAct())
}

func TestReconnectGraceExpiry(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	c1, c2 := seatTwo(t, o)

	o.Disconnect(c2)
	o.mu.Lock()
	require.NotNil(t, o.reconnectTimers["u2"], "grace timer armed on disconnect")
	seq := o.reconnectSeq["u2"]
	o.mu.Unlock()

	o.reconnectExpired("u2", seq, []string{"t1"})

	assert.Nil(t, tbl.Seats()[1], "seat vacated")
	assert.Nil(t, tbl.Reservations()[1], "reservation released")
	assert.False(t, tbl.IsHandInProgress())
	assert.GreaterOrEqual(t, c1.count("standUp"), 1)

	// A second expiry with the same sequence must be a no-op.
	standUps := c1.count("standUp")
	o.reconnectExpired("u2", seq, []string{"t1"})
	assert.Equal(t, standUps, c1.count("standUp"), "stand up happens exactly once")
}

func TestRejoinDisarmsReconnectGrace(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	_, c2 := seatTwo(t, o)

	o.Disconnect(c2)
	o.mu.Lock()
	seq := o.reconnectSeq["u2"]
	o.mu.Unlock()

	// The same identity rejoins on a fresh connection before expiry.
	c3 := &fakeConn{id: "c3", uid: "u2", name: "bob"}
	_, err := o.Join(c3, raw(`{"id":"t1"}`))
	require.NoError(t, err)

	o.reconnectExpired("u2", seq, []string{"t1"})
	assert.NotNil(t, tbl.Seats()[1], "seat preserved after rejoin")
	assert.NotNil(t, tbl.Reservations()[1])
}

func TestSetAutomaticActionRequiresSeat(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	c := &fakeConn{id: "c1", uid: "u1"}
	_, err := o.Join(c, raw(`{"id":"t1"}`))
	require.NoError(t, err)
	_, err = o.SetAutomaticAction(c, raw(`{"id":"t1","action":"check/fold"}`))
	assert.EqualError(t, err, "no seat at this table")
}

func TestAmendedPresetIsNotBroadcastAsExecuted(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	c1, c2 := seatTwo(t, o)

	// Reach the flop, where the big blind acts first and seat 0 may
	// preset a check.
	_, err := o.ActionTaken(c1, raw(`{"id":"t1","action":"call"}`))
	require.NoError(t, err)
	_, err = o.ActionTaken(c2, raw(`{"id":"t1","action":"check"}`))
	require.NoError(t, err)
	require.Equal(t, 1, tbl.PlayerToAct())

	_, err = o.SetAutomaticAction(c1, raw(`{"id":"t1","action":"check"}`))
	require.NoError(t, err)

	// The bet invalidates the check preset: the engine discards it and
	// seat 0 stays on the clock, so the broadcast must not claim seat 0
	// auto-acted.
	_, err = o.ActionTaken(c2, raw(`{"id":"t1","action":"bet","betSize":10}`))
	require.NoError(t, err)

	assert.True(t, tbl.IsBettingRoundInProgress())
	assert.Equal(t, 0, tbl.PlayerToAct())

	ev, ok := c2.lastEvent("actionTaken")
	require.True(t, ok)
	assert.Equal(t, "bet", ev.payload.Action)
	assert.Nil(t, ev.payload.UnfoldingAutomaticActions,
		"a discarded preset must not be presented as an executed action")
}

func TestDisconnectWithSurvivingConnectionKeepsSeat(t *testing.T) {
	o, tbl := newTestOrchestrator(t)
	_, c2 := seatTwo(t, o)

	// The same user opens a second connection into the same room.
	c2b := &fakeConn{id: "c2b", uid: "u2", name: "bob"}
	_, err := o.Join(c2b, raw(`{"id":"t1"}`))
	require.NoError(t, err)

	o.Disconnect(c2)
	o.mu.Lock()
	timer := o.reconnectTimers["u2"]
	o.mu.Unlock()
	assert.Nil(t, timer, "no grace timer while a connection survives in the room")
	assert.NotNil(t, tbl.Seats()[1])

	// Closing the last connection arms the timer as usual.
	o.Disconnect(c2b)
	o.mu.Lock()
	timer = o.reconnectTimers["u2"]
	o.mu.Unlock()
	assert.NotNil(t, timer, "last connection for the room arms the grace timer")
}

func TestSetAutomaticActionThenUnfoldOnAction(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	c1, c2 := seatTwo(t, o)

	_, err := o.SetAutomaticAction(c2, raw(`{"id":"t1","action":"call any"}`))
	require.NoError(t, err)

	// The raise triggers seat 1's preset, presented as the call it became.
	_, err = o.ActionTaken(c1, raw(`{"id":"t1","action":"raise","betSize":6}`))
	require.NoError(t, err)

	ev, ok := c1.lastEvent("actionTaken")
	require.True(t, ok)
	require.Len(t, ev.payload.UnfoldingAutomaticActions, table.NumSeats)
	require.NotNil(t, ev.payload.UnfoldingAutomaticActions[1])
	assert.Equal(t, "call", *ev.payload.UnfoldingAutomaticActions[1])
}
