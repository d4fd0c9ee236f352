// internal/session/orchestrator.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openholdem/poker-service/internal/messaging"
	"github.com/openholdem/poker-service/internal/table"
)

// ActionRecord is one betting action appended to the table's history.
type ActionRecord struct {
	TableID   string    `json:"tableId"`
	UID       string    `json:"uid,omitempty"`
	SeatIndex int       `json:"seatIndex"`
	Action    string    `json:"action"`
	BetSize   int       `json:"betSize,omitempty"`
	Forced    bool      `json:"forced,omitempty"`
	At        time.Time `json:"at"`
}

// Recorder persists action history. A nil recorder disables history.
type Recorder interface {
	RecordAction(ctx context.Context, rec ActionRecord) error
}

// Options tunes orchestrator timers and optional collaborators.
type Options struct {
	ActionTimeout  time.Duration
	ReconnectGrace time.Duration
	Recorder       Recorder
}

// Orchestrator drives tables through hands in response to connection
// events and timer expiries. One mutex serializes every handler and
// timer callback, so engine mutation within a handler is atomic with
// respect to all other handlers.
type Orchestrator struct {
	logger         *logrus.Logger
	tables         *table.Store
	recorder       Recorder
	actionTimeout  time.Duration
	reconnectGrace time.Duration

	mu     sync.Mutex
	rooms  map[string]map[string]Conn // room id -> conn id -> conn
	joined map[string][]string        // conn id -> rooms in join order

	actionTimers map[string]*time.Timer // keyed by room
	actionSeq    map[string]uint64

	reconnectTimers map[string]*time.Timer // keyed by user id
	reconnectSeq    map[string]uint64
}

func NewOrchestrator(logger *logrus.Logger, tables *table.Store, opts Options) *Orchestrator {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 40 * time.Second
	}
	if opts.ReconnectGrace <= 0 {
		opts.ReconnectGrace = 30 * time.Second
	}
	return &Orchestrator{
		logger:          logger,
		tables:          tables,
		recorder:        opts.Recorder,
		actionTimeout:   opts.ActionTimeout,
		reconnectGrace:  opts.ReconnectGrace,
		rooms:           make(map[string]map[string]Conn),
		joined:          make(map[string][]string),
		actionTimers:    make(map[string]*time.Timer),
		actionSeq:       make(map[string]uint64),
		reconnectTimers: make(map[string]*time.Timer),
		reconnectSeq:    make(map[string]uint64),
	}
}

// baseResponse is the per-recipient bundle attached to every reply and
// room broadcast. Hole cards differ per seat, so broadcasts compute one
// of these per member, never one per room.
type baseResponse struct {
	SeatIndex        int                     `json:"seatIndex"`
	Table            table.View              `json:"table"`
	AutomaticActions []table.AutomaticAction `json:"automaticActions,omitempty"`
	HoleCards        []table.Card            `json:"holeCards,omitempty"`
}

type roomEvent struct {
	baseResponse
	Actor                     *int      `json:"actor,omitempty"`
	Action                    string    `json:"action,omitempty"`
	UnfoldingAutomaticActions []*string `json:"unfoldingAutomaticActions,omitempty"`
}

type eventExtras struct {
	actor     *int
	action    string
	unfolding []*string
}

// --- event handlers ---

type joinParams struct {
	ID string `json:"id"`
}

// Join subscribes the connection to a table room and replies with its
// base response. A join from a user with a pending reconnect grace
// timer disarms it.
func (o *Orchestrator) Join(conn Conn, raw json.RawMessage) (interface{}, error) {
	var p joinParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, messaging.NewWireError("malformed join payload")
	}
	tbl := o.tables.Get(p.ID)
	if tbl == nil {
		return nil, messaging.NewWireError(fmt.Sprintf("unknown table %q", p.ID))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	conn.Join(p.ID)
	if o.rooms[p.ID] == nil {
		o.rooms[p.ID] = make(map[string]Conn)
	}
	o.rooms[p.ID][conn.ID()] = conn
	o.recordJoinLocked(conn.ID(), p.ID)

	if uid := conn.UID(); uid != "" {
		o.disarmReconnectLocked(uid)
	}
	return o.baseResponseLocked(tbl, conn), nil
}

type reserveSeatParams struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// ReserveSeat claims a seat for the caller's identity and tells the rest
// of the room.
func (o *Orchestrator) ReserveSeat(conn Conn, raw json.RawMessage) (interface{}, error) {
	var p reserveSeatParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, messaging.NewWireError("malformed reserveSeat payload")
	}
	uid := conn.UID()
	if uid == "" {
		return nil, messaging.NewWireError("authentication required")
	}
	tbl := o.tables.Get(p.ID)
	if tbl == nil {
		return nil, messaging.NewWireError(fmt.Sprintf("unknown table %q", p.ID))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := tbl.Reserve(p.Index, uid); err != nil {
		return nil, err
	}
	o.broadcastLocked(tbl, "reserveSeat", nil, conn.ID())
	return o.baseResponseLocked(tbl, conn), nil
}

type tableParams struct {
	ID string `json:"id"`
}

// CancelReservation releases the caller's own seat claim.
func (o *Orchestrator) CancelReservation(conn Conn, raw json.RawMessage) (interface{}, error) {
	var p tableParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, messaging.NewWireError("malformed cancelReservation payload")
	}
	uid := conn.UID()
	if uid == "" {
		return nil, messaging.NewWireError("authentication required")
	}
	tbl := o.tables.Get(p.ID)
	if tbl == nil {
		return nil, messaging.NewWireError(fmt.Sprintf("unknown table %q", p.ID))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seat := seatOf(tbl, uid)
	if seat == -1 {
		return nil, messaging.NewWireError("no reserved seat to cancel")
	}
	if err := tbl.CancelReservation(seat); err != nil {
		return nil, err
	}
	o.broadcastLocked(tbl, "cancelReservation", nil, conn.ID())
	return o.baseResponseLocked(tbl, conn), nil
}

type sitDownParams struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BuyIn       float64 `json:"buyIn"`
	AvatarStyle string  `json:"avatarStyle"`
}

const (
	minBuyIn = 1
	maxBuyIn = 99999
)

// SitDown upgrades the caller's reservation with a display profile and
// seats them; once two seats are occupied a hand starts automatically.
func (o *Orchestrator) SitDown(conn Conn, raw json.RawMessage) (interface{}, error) {
	var p sitDownParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, messaging.NewWireError("malformed sitDown payload", "field", "buyIn")
	}
	uid := conn.UID()
	if uid == "" {
		return nil, messaging.NewWireError("authentication required")
	}
	name := strings.TrimSpace(p.Name)
	if len(name) < 2 {
		return nil, messaging.NewWireError("display name must be at least 2 characters", "field", "name")
	}
	if p.AvatarStyle == "" {
		return nil, messaging.NewWireError("avatar style is required", "field", "avatarStyle")
	}
	if p.BuyIn < minBuyIn || p.BuyIn > maxBuyIn {
		return nil, messaging.NewWireError("buy-in must be between 1 and 99999", "field", "buyIn")
	}
	tbl := o.tables.Get(p.ID)
	if tbl == nil {
		return nil, messaging.NewWireError(fmt.Sprintf("unknown table %q", p.ID))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seat := seatOf(tbl, uid)
	if seat == -1 {
		return nil, messaging.NewWireError("reserve a seat before sitting down")
	}
	if err := tbl.UpdateReservation(seat, table.Reservation{
		UID:         uid,
		Name:        name,
		AvatarStyle: p.AvatarStyle,
	}); err != nil {
		return nil, err
	}
	if err := tbl.SitDown(seat, int(p.BuyIn)); err != nil {
		return nil, err
	}

	o.broadcastLocked(tbl, "sitDown", nil, conn.ID())

	if !tbl.IsHandInProgress() && tbl.NumOfSeatedPlayers() >= 2 {
		if err := tbl.StartHand(); err != nil {
			o.logger.Errorf("table %s: start hand failed: %v", tbl.ID(), err)
		} else {
			o.broadcastLocked(tbl, "startHand", nil, "")
			o.postActionLocked(tbl)
		}
	}
	return o.baseResponseLocked(tbl, conn), nil
}

// StandUp vacates the caller's seat and releases the reservation.
// Standing up mid-hand folds the seat, which can close the round and
// trigger the usual cascade.
func (o *Orchestrator) StandUp(conn Conn, raw json.RawMessage) (interface{}, error) {
	var p tableParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, messaging.NewWireError("malformed standUp payload")
	}
	uid := conn.UID()
	if uid == "" {
		return nil, messaging.NewWireError("authentication required")
	}
	tbl := o.tables.Get(p.ID)
	if tbl == nil {
		return nil, messaging.NewWireError(fmt.Sprintf("unknown table %q", p.ID))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seat := seatOf(tbl, uid)
	if seat == -1 {
		return nil, messaging.NewWireError("no seat to stand up from")
	}
	if err := tbl.StandUp(seat); err != nil {
		return nil, err
	}
	if err := tbl.CancelReservation(seat); err != nil {
		o.logger.Warnf("table %s: releasing reservation for seat %d: %v", tbl.ID(), seat, err)
	}

	actor := seat
	o.broadcastLocked(tbl, "standUp", &eventExtras{actor: &actor}, conn.ID())
	o.postActionLocked(tbl)
	return o.baseResponseLocked(tbl, conn), nil
}

type actionTakenParams struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	BetSize int    `json:"betSize"`
}

// ActionTaken applies a betting action for the caller. It is rejected
// without mutation or broadcast unless the caller resolves to the seat
// currently on the clock.
func (o *Orchestrator) ActionTaken(conn Conn, raw json.RawMessage) (interface{}, error) {
	var p actionTakenParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, messaging.NewWireError("malformed actionTaken payload")
	}
	uid := conn.UID()
	if uid == "" {
		return nil, messaging.NewWireError("authentication required")
	}
	tbl := o.tables.Get(p.ID)
	if tbl == nil {
		return nil, messaging.NewWireError(fmt.Sprintf("unknown table %q", p.ID))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seat := seatOf(tbl, uid)
	if seat == -1 {
		return nil, messaging.NewWireError("no seat at this table")
	}
	if !tbl.IsHandInProgress() || !tbl.IsBettingRoundInProgress() || seat != tbl.PlayerToAct() {
		return nil, messaging.NewWireError("acting out of turn")
	}

	if err := o.applyActionLocked(tbl, seat, table.Action(p.Action), p.BetSize, uid, false); err != nil {
		return nil, err
	}
	return o.baseResponseLocked(tbl, conn), nil
}

type setAutomaticActionParams struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// SetAutomaticAction stores the caller's preset for when their turn
// arrives without manual input.
func (o *Orchestrator) SetAutomaticAction(conn Conn, raw json.RawMessage) (interface{}, error) {
	var p setAutomaticActionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, messaging.NewWireError("malformed setAutomaticAction payload")
	}
	uid := conn.UID()
	if uid == "" {
		return nil, messaging.NewWireError("authentication required")
	}
	tbl := o.tables.Get(p.ID)
	if tbl == nil {
		return nil, messaging.NewWireError(fmt.Sprintf("unknown table %q", p.ID))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	seat := seatOf(tbl, uid)
	if seat == -1 {
		return nil, messaging.NewWireError("no seat at this table")
	}
	if err := tbl.SetAutomaticAction(seat, table.AutomaticAction(p.Action)); err != nil {
		return nil, err
	}
	return o.baseResponseLocked(tbl, conn), nil
}

// Disconnect runs when a connection's transport closes. If the
// connection was authenticated, a grace timer is armed over the rooms it
// had joined; firing forces the user out of any seat they still hold.
func (o *Orchestrator) Disconnect(conn Conn) {
	o.mu.Lock()
	defer o.mu.Unlock()

	roomsJoined := o.joined[conn.ID()]
	delete(o.joined, conn.ID())
	for _, room := range roomsJoined {
		if members := o.rooms[room]; members != nil {
			delete(members, conn.ID())
			if len(members) == 0 {
				delete(o.rooms, room)
			}
		}
	}

	uid := conn.UID()
	if uid == "" || len(roomsJoined) == 0 {
		return
	}

	// Only rooms where this was the user's last connection go on the
	// grace timer; a surviving socket keeps the seat without rejoining.
	captured := make([]string, 0, len(roomsJoined))
	for _, room := range roomsJoined {
		alive := false
		for _, member := range o.rooms[room] {
			if member.UID() == uid {
				alive = true
				break
			}
		}
		if !alive {
			captured = append(captured, room)
		}
	}
	if len(captured) == 0 {
		return
	}

	o.disarmReconnectLocked(uid)
	o.reconnectSeq[uid]++
	seq := o.reconnectSeq[uid]
	o.reconnectTimers[uid] = time.AfterFunc(o.reconnectGrace, func() {
		o.reconnectExpired(uid, seq, captured)
	})
	o.logger.WithFields(logrus.Fields{
		"uid":   uid,
		"rooms": captured,
	}).Info("connection closed, reconnect grace armed")
}

// --- timers ---

func (o *Orchestrator) armActionTimerLocked(tbl *table.Table) {
	room := tbl.ID()
	if t := o.actionTimers[room]; t != nil {
		t.Stop()
	}
	o.actionSeq[room]++
	seq := o.actionSeq[room]
	o.actionTimers[room] = time.AfterFunc(o.actionTimeout, func() {
		o.actionTimerFired(room, seq)
	})
}

func (o *Orchestrator) disarmActionTimerLocked(room string) {
	if t := o.actionTimers[room]; t != nil {
		t.Stop()
		delete(o.actionTimers, room)
	}
	o.actionSeq[room]++
}

// actionTimerFired folds for whichever seat is on the clock when the
// timer expires. The sequence check discards timers that were superseded
// between firing and acquiring the lock.
func (o *Orchestrator) actionTimerFired(room string, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.actionSeq[room] != seq {
		return
	}
	delete(o.actionTimers, room)

	tbl := o.tables.Get(room)
	if tbl == nil || !tbl.IsHandInProgress() || !tbl.IsBettingRoundInProgress() {
		return
	}
	seat := tbl.PlayerToAct()
	o.logger.Warnf("table %s: seat %d timed out, folding", room, seat)
	if err := o.applyActionLocked(tbl, seat, table.ActionFold, 0, "", true); err != nil {
		o.logger.Errorf("table %s: forced fold failed: %v", room, err)
	}
}

func (o *Orchestrator) disarmReconnectLocked(uid string) {
	if t := o.reconnectTimers[uid]; t != nil {
		t.Stop()
		delete(o.reconnectTimers, uid)
	}
	o.reconnectSeq[uid]++
}

// reconnectExpired vacates the user's seat and reservation in every room
// their last connection had joined.
func (o *Orchestrator) reconnectExpired(uid string, seq uint64, rooms []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.reconnectSeq[uid] != seq {
		return
	}
	o.reconnectSeq[uid]++
	delete(o.reconnectTimers, uid)

	for _, room := range rooms {
		tbl := o.tables.Get(room)
		if tbl == nil {
			continue
		}
		seat := seatOf(tbl, uid)
		if seat == -1 {
			continue
		}
		o.logger.Warnf("table %s: reconnect grace expired for %s, vacating seat %d", room, uid, seat)
		if tbl.Seats()[seat] != nil {
			if err := tbl.StandUp(seat); err != nil {
				o.logger.Errorf("table %s: forced stand up failed: %v", room, err)
				continue
			}
		}
		if err := tbl.CancelReservation(seat); err != nil {
			o.logger.Errorf("table %s: releasing reservation failed: %v", room, err)
		}
		actor := seat
		o.broadcastLocked(tbl, "standUp", &eventExtras{actor: &actor}, "")
		o.postActionLocked(tbl)
	}
}

// --- cascade ---

// applyActionLocked is the single code path for betting actions, manual
// or forced. It computes the unfolding view before the action, applies
// the action, clears invalidated presets, broadcasts the result, and
// runs the post-action cascade.
func (o *Orchestrator) applyActionLocked(tbl *table.Table, seat int, action table.Action, size int, uid string, forced bool) error {
	preBets := betsSnapshot(tbl)
	view := unfoldAutomaticActions(tbl)

	if err := tbl.ActionTaken(action, size); err != nil {
		return err
	}
	applyInvalidations(tbl, view)

	// If the seat now on the clock held a preset in the pre-action view,
	// the engine discarded it instead of executing it (it no longer fit
	// the betting context). The view is stale: nullify it rather than
	// tell the room a player auto-acted when they did nothing.
	if tbl.IsBettingRoundInProgress() && view.presets[tbl.PlayerToAct()] != "" {
		view.presets = [table.NumSeats]table.AutomaticAction{}
	}

	actor := seat
	o.broadcastLocked(tbl, "actionTaken", &eventExtras{
		actor:     &actor,
		action:    string(action),
		unfolding: presentAutomaticActions(tbl, view, preBets),
	}, "")

	o.record(ActionRecord{
		TableID:   tbl.ID(),
		UID:       uid,
		SeatIndex: seat,
		Action:    string(action),
		BetSize:   size,
		Forced:    forced,
		At:        time.Now(),
	})

	o.postActionLocked(tbl)
	return nil
}

// postActionLocked advances the hand after any state-mutating event:
// closes finished betting rounds, runs the showdown, starts the next
// hand when enough players remain, and keeps the action timer in step
// with whether anyone is on the clock.
func (o *Orchestrator) postActionLocked(tbl *table.Table) {
	for tbl.IsHandInProgress() && !tbl.IsBettingRoundInProgress() && !tbl.AreBettingRoundsCompleted() {
		if err := tbl.EndBettingRound(); err != nil {
			o.logger.Errorf("table %s: end betting round failed: %v", tbl.ID(), err)
			break
		}
		o.broadcastLocked(tbl, "bettingRoundEnd", nil, "")
	}

	if tbl.IsHandInProgress() && tbl.AreBettingRoundsCompleted() {
		if err := tbl.Showdown(); err != nil {
			o.logger.Errorf("table %s: showdown failed: %v", tbl.ID(), err)
		} else {
			o.broadcastLocked(tbl, "showdown", nil, "")
		}
		o.disarmActionTimerLocked(tbl.ID())

		if tbl.NumOfSeatedPlayers() > 1 {
			if err := tbl.StartHand(); err != nil {
				o.logger.Errorf("table %s: start hand failed: %v", tbl.ID(), err)
			} else {
				o.broadcastLocked(tbl, "startHand", nil, "")
			}
		}
	}

	if tbl.IsHandInProgress() && tbl.IsBettingRoundInProgress() {
		o.armActionTimerLocked(tbl)
	} else {
		o.disarmActionTimerLocked(tbl.ID())
	}
}

// --- helpers ---

func (o *Orchestrator) baseResponseLocked(tbl *table.Table, conn Conn) baseResponse {
	seat := seatOf(tbl, conn.UID())
	br := baseResponse{SeatIndex: seat, Table: tbl.View()}
	if seat >= 0 {
		br.AutomaticActions = tbl.LegalAutomaticActions(seat)
		br.HoleCards = tbl.HoleCards(seat)
	}
	return br
}

// broadcastLocked emits a per-recipient payload to every room member
// except the one identified by exceptID (empty means everyone).
func (o *Orchestrator) broadcastLocked(tbl *table.Table, event string, extras *eventExtras, exceptID string) {
	for id, conn := range o.rooms[tbl.ID()] {
		if exceptID != "" && id == exceptID {
			continue
		}
		payload := roomEvent{baseResponse: o.baseResponseLocked(tbl, conn)}
		if extras != nil {
			payload.Actor = extras.actor
			payload.Action = extras.action
			payload.UnfoldingAutomaticActions = extras.unfolding
		}
		conn.Emit(event, payload)
	}
}

func (o *Orchestrator) recordJoinLocked(connID, room string) {
	for _, r := range o.joined[connID] {
		if r == room {
			return
		}
	}
	o.joined[connID] = append(o.joined[connID], room)
}

func (o *Orchestrator) record(rec ActionRecord) {
	if o.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := o.recorder.RecordAction(ctx, rec); err != nil {
			o.logger.Warnf("table %s: recording action: %v", rec.TableID, err)
		}
	}()
}

// seatOf resolves a user's seat by scanning the reservation list. -1
// means no seat, which seat-scoped handlers treat as a precondition
// failure.
func seatOf(tbl *table.Table, uid string) int {
	if uid == "" {
		return -1
	}
	for i, r := range tbl.Reservations() {
		if r != nil && r.UID == uid {
			return i
		}
	}
	return -1
}

func betsSnapshot(tbl *table.Table) [table.NumSeats]int {
	var bets [table.NumSeats]int
	for i, s := range tbl.Seats() {
		if s != nil {
			bets[i] = s.BetSize
		}
	}
	return bets
}
