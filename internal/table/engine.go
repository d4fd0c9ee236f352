// internal/table/engine.go
package table

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/paulhankin/poker"
)

// NumSeats is the fixed seat count per table.
const NumSeats = 9

// Action is a manual betting action.
type Action string

const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionBet   Action = "bet"
	ActionRaise Action = "raise"
)

// AutomaticAction is a per-seat preset applied without manual input when
// the seat's turn arrives. The empty string means no preset.
type AutomaticAction string

const (
	AutoFold      AutomaticAction = "fold"
	AutoCheckFold AutomaticAction = "check/fold"
	AutoCheck     AutomaticAction = "check"
	AutoCall      AutomaticAction = "call"
	AutoCallAny   AutomaticAction = "call any"
	AutoAllIn     AutomaticAction = "all-in"
)

// Round is a street of betting.
type Round string

const (
	RoundPreflop Round = "preflop"
	RoundFlop    Round = "flop"
	RoundTurn    Round = "turn"
	RoundRiver   Round = "river"
)

// ForcedBets is the table's blind and ante structure.
type ForcedBets struct {
	Ante       int `json:"ante"`
	SmallBlind int `json:"smallBlind"`
	BigBlind   int `json:"bigBlind"`
}

// Reservation holds a seat claim for a user, upgraded with a display
// profile at sit-down time.
type Reservation struct {
	UID         string `json:"uid"`
	Name        string `json:"name,omitempty"`
	AvatarStyle string `json:"avatarStyle,omitempty"`
}

// Seat is the public chip state of a seated player.
type Seat struct {
	TotalChips int `json:"totalChips"`
	Stack      int `json:"stack"`
	BetSize    int `json:"betSize"`
}

// ChipRange bounds the legal bet or raise size for the active player.
type ChipRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// LegalActions lists what the active player may do and, when betting or
// raising is allowed, over what chip range.
type LegalActions struct {
	Actions   []Action   `json:"actions"`
	ChipRange *ChipRange `json:"chipRange,omitempty"`
}

// Pot is a main or side pot and the seats still eligible to win it.
type Pot struct {
	Size            int   `json:"size"`
	EligiblePlayers []int `json:"eligiblePlayers"`
}

// Winner is one pot winner revealed at showdown.
type Winner struct {
	SeatIndex int    `json:"seatIndex"`
	Ranking   string `json:"ranking,omitempty"`
	HoleCards []Card `json:"holeCards"`
}

// Table is a single no-limit hold'em table. It is not safe for concurrent
// use; the session orchestrator serializes all access.
type Table struct {
	id         string
	forcedBets ForcedBets
	rng        *rand.Rand

	seats        [NumSeats]*seatState
	reservations [NumSeats]*Reservation

	deck      []Card
	community []Card

	handInProgress bool
	bettingOpen    bool
	roundsDone     bool
	round          Round
	button         int

	holeCards [NumSeats][]Card
	dealt     [NumSeats]bool
	inHand    [NumSeats]bool
	allIn     [NumSeats]bool
	betSize   [NumSeats]int
	committed [NumSeats]int
	pending   [NumSeats]bool

	toAct         int
	biggestBet    int
	minRaiseDelta int

	autoActions [NumSeats]AutomaticAction
	winners     [][]Winner
}

type seatState struct {
	stack int
}

// NewTable creates an empty table with the given blind structure.
func NewTable(id string, fb ForcedBets) *Table {
	return &Table{
		id:         id,
		forcedBets: fb,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		button:     -1,
		toAct:      -1,
	}
}

// ID returns the table identifier.
func (t *Table) ID() string { return t.id }

// ForcedBets returns the blind structure.
func (t *Table) ForcedBets() ForcedBets { return t.forcedBets }

// --- reservations ---

// Reserve claims a seat for a user. A user holds at most one reservation
// per table.
func (t *Table) Reserve(index int, uid string) error {
	if index < 0 || index >= NumSeats {
		return errors.New("seat index out of range")
	}
	if t.reservations[index] != nil {
		return errors.New("seat is already reserved")
	}
	for _, r := range t.reservations {
		if r != nil && r.UID == uid {
			return errors.New("user already has a reserved seat at this table")
		}
	}
	t.reservations[index] = &Reservation{UID: uid}
	return nil
}

// UpdateReservation replaces the reservation profile at a seat. The seat
// must already be reserved by the same user.
func (t *Table) UpdateReservation(index int, res Reservation) error {
	if index < 0 || index >= NumSeats {
		return errors.New("seat index out of range")
	}
	existing := t.reservations[index]
	if existing == nil {
		return errors.New("missing reservation")
	}
	if existing.UID != res.UID {
		return errors.New("reservation owned by someone else")
	}
	t.reservations[index] = &res
	return nil
}

// CancelReservation releases a seat claim. The seat must not be occupied.
func (t *Table) CancelReservation(index int) error {
	if index < 0 || index >= NumSeats {
		return errors.New("missing seat index")
	}
	if t.reservations[index] == nil {
		return errors.New("seat is not reserved")
	}
	if t.seats[index] != nil {
		return errors.New("stand up before cancelling the reservation")
	}
	t.reservations[index] = nil
	return nil
}

// Reservations returns a copy of the reservation list, indexed by seat.
func (t *Table) Reservations() [NumSeats]*Reservation {
	var out [NumSeats]*Reservation
	for i, r := range t.reservations {
		if r != nil {
			cp := *r
			out[i] = &cp
		}
	}
	return out
}

// --- seating ---

// SitDown seats a player with a buy-in at an unoccupied seat.
func (t *Table) SitDown(index int, buyIn int) error {
	if index < 0 || index >= NumSeats {
		return errors.New("seat index out of range")
	}
	if t.seats[index] != nil {
		return errors.New("seat is already occupied")
	}
	if buyIn <= 0 {
		return errors.New("buy-in must be positive")
	}
	t.seats[index] = &seatState{stack: buyIn}
	return nil
}

// StandUp vacates a seat. Standing up mid-hand folds the seat; chips
// already committed stay in the pot.
func (t *Table) StandUp(index int) error {
	if index < 0 || index >= NumSeats {
		return errors.New("seat index out of range")
	}
	if t.seats[index] == nil {
		return errors.New("seat is not occupied")
	}

	if t.handInProgress && t.inHand[index] {
		t.inHand[index] = false
		t.pending[index] = false
		if t.bettingOpen {
			if index == t.toAct {
				if t.advanceActor() {
					t.beginTurn()
				}
			} else if t.countInHand() <= 1 {
				t.closeBetting()
			}
		}
	}

	t.seats[index] = nil
	t.autoActions[index] = ""
	return nil
}

// NumOfSeatedPlayers counts occupied seats.
func (t *Table) NumOfSeatedPlayers() int {
	n := 0
	for _, s := range t.seats {
		if s != nil {
			n++
		}
	}
	return n
}

// --- hand lifecycle ---

// StartHand shuffles, moves the button, posts forced bets, and deals.
func (t *Table) StartHand() error {
	if t.handInProgress {
		return errors.New("hand already in progress")
	}

	participants := 0
	for _, s := range t.seats {
		if s != nil && s.stack > 0 {
			participants++
		}
	}
	if participants < 2 {
		return errors.New("not enough players to start a hand")
	}

	t.deck = newDeck(t.rng)
	t.community = nil
	t.winners = nil
	t.roundsDone = false
	for i := range t.seats {
		t.holeCards[i] = nil
		t.dealt[i] = false
		t.inHand[i] = false
		t.allIn[i] = false
		t.betSize[i] = 0
		t.committed[i] = 0
		t.pending[i] = false
		t.autoActions[i] = ""
	}

	for i, s := range t.seats {
		if s != nil && s.stack > 0 {
			t.dealt[i] = true
			t.inHand[i] = true
		}
	}

	t.button = t.nextDealt(t.button)

	var sb, bb int
	if participants == 2 {
		sb = t.button
		bb = t.nextDealt(sb)
	} else {
		sb = t.nextDealt(t.button)
		bb = t.nextDealt(sb)
	}

	if t.forcedBets.Ante > 0 {
		for i := range t.seats {
			if t.dealt[i] {
				t.payAnte(i, t.forcedBets.Ante)
			}
		}
	}
	t.pay(sb, t.forcedBets.SmallBlind)
	t.pay(bb, t.forcedBets.BigBlind)

	for i := range t.seats {
		if t.dealt[i] {
			t.holeCards[i] = []Card{t.drawCard(), t.drawCard()}
		}
	}

	t.handInProgress = true
	t.bettingOpen = true
	t.round = RoundPreflop
	t.biggestBet = 0
	for i := range t.seats {
		if t.dealt[i] && t.betSize[i] > t.biggestBet {
			t.biggestBet = t.betSize[i]
		}
	}
	t.minRaiseDelta = t.forcedBets.BigBlind
	for i := range t.seats {
		t.pending[i] = t.inHand[i] && !t.allIn[i]
	}

	t.toAct = t.nextPending(bb)
	if t.toAct == -1 {
		// Blinds put everyone all-in.
		t.closeBetting()
	}
	return nil
}

// ActionTaken applies a manual action for the player to act, then advances
// the turn, applying any preset automatic actions along the way.
func (t *Table) ActionTaken(action Action, size int) error {
	if !t.handInProgress || !t.bettingOpen {
		return errors.New("no betting round in progress")
	}
	if err := t.apply(t.toAct, action, size); err != nil {
		return err
	}
	if t.advanceActor() {
		t.beginTurn()
	}
	return nil
}

// EndBettingRound closes the finished betting round, dealing the next
// street or marking the hand's betting complete. If fewer than two players
// can still act, the remaining streets are run out immediately.
func (t *Table) EndBettingRound() error {
	if !t.handInProgress {
		return errors.New("no hand in progress")
	}
	if t.bettingOpen {
		return errors.New("betting round still in progress")
	}
	if t.roundsDone {
		return errors.New("betting rounds already completed")
	}

	for i := range t.seats {
		t.betSize[i] = 0
	}

	if t.countInHand() <= 1 || t.round == RoundRiver {
		t.roundsDone = true
		return nil
	}

	t.dealNextStreet()

	if t.countCanAct() >= 2 {
		t.openBettingRound()
	} else {
		for t.round != RoundRiver {
			t.dealNextStreet()
		}
		t.roundsDone = true
	}
	return nil
}

// Showdown resolves pots, reveals winners, pays them, and ends the hand.
// Seats that bust out are removed from the table.
func (t *Table) Showdown() error {
	if !t.handInProgress {
		return errors.New("no hand in progress")
	}
	if !t.roundsDone {
		return errors.New("betting rounds not completed")
	}

	pots := t.computePots()
	t.winners = make([][]Winner, 0, len(pots))

	for _, pot := range pots {
		winners := t.potWinners(pot)
		payout := make([]Winner, 0, len(winners))
		if len(winners) > 0 {
			share := pot.Size / len(winners)
			remainder := pot.Size - share*len(winners)
			for n, w := range winners {
				amount := share
				if n == 0 {
					amount += remainder
				}
				t.seats[w.SeatIndex].stack += amount
				payout = append(payout, w)
			}
		}
		t.winners = append(t.winners, payout)
	}

	t.handInProgress = false
	t.bettingOpen = false
	t.toAct = -1
	for i := range t.seats {
		t.betSize[i] = 0
		t.committed[i] = 0
		t.autoActions[i] = ""
		if t.seats[i] != nil && t.seats[i].stack == 0 {
			t.seats[i] = nil
			t.reservations[i] = nil
		}
	}
	return nil
}

// potWinners picks the best in-hand holdings among a pot's eligible seats.
func (t *Table) potWinners(pot Pot) []Winner {
	eligible := make([]int, 0, len(pot.EligiblePlayers))
	for _, i := range pot.EligiblePlayers {
		if t.inHand[i] {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	if len(eligible) == 1 || len(t.community) < 5 {
		// Fold-out: no evaluation, no reveal of rankings.
		i := eligible[0]
		return []Winner{{SeatIndex: i, HoleCards: append([]Card(nil), t.holeCards[i]...)}}
	}

	type scored struct {
		seat  int
		score int16
		desc  string
	}
	best := []scored{}
	for _, i := range eligible {
		hand, err := t.finalHand(i)
		if err != nil {
			continue
		}
		score := poker.Eval7(&hand)
		desc, _ := poker.Describe(hand[:])
		best = append(best, scored{seat: i, score: score, desc: desc})
	}
	if len(best) == 0 {
		return nil
	}

	top := best[0].score
	for _, s := range best[1:] {
		if s.score > top {
			top = s.score
		}
	}
	winners := make([]Winner, 0, len(best))
	for _, s := range best {
		if s.score == top {
			winners = append(winners, Winner{
				SeatIndex: s.seat,
				Ranking:   s.desc,
				HoleCards: append([]Card(nil), t.holeCards[s.seat]...),
			})
		}
	}
	return winners
}

func (t *Table) finalHand(seat int) ([7]poker.Card, error) {
	var hand [7]poker.Card
	for n, c := range t.community {
		pc, err := evalCard(c)
		if err != nil {
			return hand, fmt.Errorf("invalid community card: %w", err)
		}
		hand[n] = pc
	}
	for n, c := range t.holeCards[seat] {
		pc, err := evalCard(c)
		if err != nil {
			return hand, fmt.Errorf("invalid hole card: %w", err)
		}
		hand[5+n] = pc
	}
	return hand, nil
}

// --- automatic actions ---

// SetAutomaticAction stores (or clears, with the empty action) a seat's
// preset. Only legal while that seat can preset an action.
func (t *Table) SetAutomaticAction(index int, action AutomaticAction) error {
	if index < 0 || index >= NumSeats {
		return errors.New("seat index out of range")
	}
	if action == "" {
		t.autoActions[index] = ""
		return nil
	}
	if !t.CanSetAutomaticAction(index) {
		return errors.New("cannot set an automatic action for this seat")
	}
	for _, legal := range t.LegalAutomaticActions(index) {
		if legal == action {
			t.autoActions[index] = action
			return nil
		}
	}
	return fmt.Errorf("automatic action %q is not legal", action)
}

// CanSetAutomaticAction reports whether the seat may hold a preset: in the
// hand, able to act, and not currently the player to act.
func (t *Table) CanSetAutomaticAction(index int) bool {
	if index < 0 || index >= NumSeats {
		return false
	}
	return t.handInProgress && t.bettingOpen &&
		t.inHand[index] && !t.allIn[index] && index != t.toAct
}

// LegalAutomaticActions lists the presets a seat may choose right now.
func (t *Table) LegalAutomaticActions(index int) []AutomaticAction {
	if !t.CanSetAutomaticAction(index) {
		return nil
	}
	actions := []AutomaticAction{AutoFold, AutoCheckFold, AutoCallAny, AutoAllIn}
	if t.biggestBet > t.betSize[index] {
		actions = append(actions, AutoCall)
	} else {
		actions = append(actions, AutoCheck)
	}
	return actions
}

// AutomaticActions returns a copy of the per-seat preset array.
func (t *Table) AutomaticActions() [NumSeats]AutomaticAction {
	return t.autoActions
}

// beginTurn applies the preset of the player to act, cascading through
// further seats while presets keep resolving. A preset that is no longer
// legal is discarded and the seat waits for manual input.
func (t *Table) beginTurn() {
	for t.bettingOpen {
		auto := t.autoActions[t.toAct]
		if auto == "" {
			return
		}
		t.autoActions[t.toAct] = ""
		action, size, ok := t.resolveAutomatic(t.toAct, auto)
		if !ok {
			return
		}
		if err := t.apply(t.toAct, action, size); err != nil {
			return
		}
		if !t.advanceActor() {
			return
		}
	}
}

// resolveAutomatic maps a preset to the concrete action for the seat's
// current situation, or reports that the preset cannot be honored.
func (t *Table) resolveAutomatic(seat int, auto AutomaticAction) (Action, int, bool) {
	owe := t.biggestBet - t.betSize[seat]
	switch auto {
	case AutoFold:
		return ActionFold, 0, true
	case AutoCheckFold:
		if owe <= 0 {
			return ActionCheck, 0, true
		}
		return ActionFold, 0, true
	case AutoCheck:
		if owe <= 0 {
			return ActionCheck, 0, true
		}
		return "", 0, false
	case AutoCall:
		if owe > 0 {
			return ActionCall, 0, true
		}
		return "", 0, false
	case AutoCallAny:
		if owe > 0 {
			return ActionCall, 0, true
		}
		return ActionCheck, 0, true
	case AutoAllIn:
		total := t.betSize[seat] + t.seats[seat].stack
		if total <= t.biggestBet {
			if owe > 0 {
				return ActionCall, 0, true
			}
			return ActionCheck, 0, true
		}
		if t.biggestBet == 0 {
			return ActionBet, total, true
		}
		return ActionRaise, total, true
	}
	return "", 0, false
}

// --- betting internals ---

// apply validates and executes one action for a seat.
func (t *Table) apply(seat int, action Action, size int) error {
	s := t.seats[seat]
	if s == nil || !t.inHand[seat] {
		return errors.New("seat cannot act")
	}
	owe := t.biggestBet - t.betSize[seat]
	allInTotal := t.betSize[seat] + s.stack

	switch action {
	case ActionFold:
		t.inHand[seat] = false
		t.pending[seat] = false

	case ActionCheck:
		if owe > 0 {
			return errors.New("cannot check facing a bet")
		}
		t.pending[seat] = false

	case ActionCall:
		if owe <= 0 {
			return errors.New("nothing to call")
		}
		t.pay(seat, owe)
		t.pending[seat] = false

	case ActionBet:
		if t.biggestBet > 0 {
			return errors.New("cannot bet over an existing wager")
		}
		if size > allInTotal {
			return errors.New("bet exceeds stack")
		}
		if size < t.forcedBets.BigBlind && size < allInTotal {
			return errors.New("bet below minimum")
		}
		t.pay(seat, size-t.betSize[seat])
		t.biggestBet = t.betSize[seat]
		t.minRaiseDelta = t.betSize[seat]
		t.reopenAction(seat)

	case ActionRaise:
		if t.biggestBet == 0 {
			return errors.New("nothing to raise")
		}
		if size > allInTotal {
			return errors.New("raise exceeds stack")
		}
		if size <= t.biggestBet {
			return errors.New("raise must exceed the current bet")
		}
		if size < t.biggestBet+t.minRaiseDelta && size < allInTotal {
			return errors.New("raise below minimum")
		}
		delta := size - t.biggestBet
		t.pay(seat, size-t.betSize[seat])
		t.biggestBet = t.betSize[seat]
		if delta > t.minRaiseDelta {
			t.minRaiseDelta = delta
		}
		t.reopenAction(seat)

	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// reopenAction puts every other live seat back on the clock after a bet
// or raise.
func (t *Table) reopenAction(aggressor int) {
	for i := range t.seats {
		t.pending[i] = t.inHand[i] && !t.allIn[i] && i != aggressor
	}
}

// advanceActor moves the turn to the next seat owing action, closing the
// betting round when none remains.
func (t *Table) advanceActor() bool {
	if t.countInHand() <= 1 {
		t.closeBetting()
		return false
	}
	next := t.nextPending(t.toAct)
	if next == -1 {
		t.closeBetting()
		return false
	}
	t.toAct = next
	return true
}

func (t *Table) closeBetting() {
	t.bettingOpen = false
	t.toAct = -1
}

func (t *Table) openBettingRound() {
	t.biggestBet = 0
	t.minRaiseDelta = t.forcedBets.BigBlind
	for i := range t.seats {
		t.pending[i] = t.inHand[i] && !t.allIn[i]
	}
	t.bettingOpen = true
	t.toAct = t.nextPending(t.button)
	if t.toAct == -1 {
		t.closeBetting()
		return
	}
	t.beginTurn()
}

func (t *Table) dealNextStreet() {
	switch t.round {
	case RoundPreflop:
		t.community = append(t.community, t.drawCard(), t.drawCard(), t.drawCard())
		t.round = RoundFlop
	case RoundFlop:
		t.community = append(t.community, t.drawCard())
		t.round = RoundTurn
	case RoundTurn:
		t.community = append(t.community, t.drawCard())
		t.round = RoundRiver
	}
}

func (t *Table) drawCard() Card {
	c := t.deck[len(t.deck)-1]
	t.deck = t.deck[:len(t.deck)-1]
	return c
}

// pay moves chips from the seat's stack into its current bet, capped at
// the stack (all-in for less).
func (t *Table) pay(seat, amount int) {
	s := t.seats[seat]
	if amount > s.stack {
		amount = s.stack
	}
	s.stack -= amount
	t.betSize[seat] += amount
	t.committed[seat] += amount
	if s.stack == 0 {
		t.allIn[seat] = true
		t.pending[seat] = false
	}
}

// payAnte commits chips without counting them toward the seat's bet.
func (t *Table) payAnte(seat, amount int) {
	s := t.seats[seat]
	if amount > s.stack {
		amount = s.stack
	}
	s.stack -= amount
	t.committed[seat] += amount
	if s.stack == 0 {
		t.allIn[seat] = true
	}
}

func (t *Table) nextDealt(from int) int {
	for n := 1; n <= NumSeats; n++ {
		i := ((from + n) % NumSeats + NumSeats) % NumSeats
		if t.dealt[i] {
			return i
		}
	}
	return -1
}

func (t *Table) nextPending(from int) int {
	for n := 1; n <= NumSeats; n++ {
		i := ((from + n) % NumSeats + NumSeats) % NumSeats
		if t.inHand[i] && !t.allIn[i] && t.pending[i] {
			return i
		}
	}
	return -1
}

func (t *Table) countInHand() int {
	n := 0
	for i := range t.seats {
		if t.inHand[i] {
			n++
		}
	}
	return n
}

func (t *Table) countCanAct() int {
	n := 0
	for i := range t.seats {
		if t.inHand[i] && !t.allIn[i] {
			n++
		}
	}
	return n
}

// computePots layers committed chips into a main pot and side pots.
// Folded contributions sweeten the pots without eligibility.
func (t *Table) computePots() []Pot {
	var contrib [NumSeats]int
	for i := range t.seats {
		if t.dealt[i] {
			contrib[i] = t.committed[i]
		}
	}

	var pots []Pot
	for {
		level := 0
		for i := range contrib {
			if t.inHand[i] && contrib[i] > 0 && (level == 0 || contrib[i] < level) {
				level = contrib[i]
			}
		}
		if level == 0 {
			leftover := 0
			for i := range contrib {
				leftover += contrib[i]
				contrib[i] = 0
			}
			if leftover > 0 && len(pots) > 0 {
				pots[len(pots)-1].Size += leftover
			}
			break
		}

		pot := Pot{}
		for i := range contrib {
			if contrib[i] == 0 {
				continue
			}
			take := contrib[i]
			if take > level {
				take = level
			}
			pot.Size += take
			contrib[i] -= take
			if t.inHand[i] && take == level {
				pot.EligiblePlayers = append(pot.EligiblePlayers, i)
			}
		}
		pots = append(pots, pot)
	}
	return pots
}

// --- queries ---

// IsHandInProgress reports whether a hand is being played.
func (t *Table) IsHandInProgress() bool { return t.handInProgress }

// IsBettingRoundInProgress reports whether any player still owes action.
// Only meaningful while a hand is in progress.
func (t *Table) IsBettingRoundInProgress() bool { return t.bettingOpen }

// AreBettingRoundsCompleted reports whether every street has been
// resolved. Only meaningful while a hand is in progress.
func (t *Table) AreBettingRoundsCompleted() bool { return t.roundsDone }

// PlayerToAct returns the seat whose turn it is. Only meaningful while a
// betting round is in progress.
func (t *Table) PlayerToAct() int { return t.toAct }

// Button returns the dealer button seat.
func (t *Table) Button() int { return t.button }

// RoundOfBetting returns the current street.
func (t *Table) RoundOfBetting() Round { return t.round }

// CommunityCards returns a copy of the board.
func (t *Table) CommunityCards() []Card {
	return append([]Card(nil), t.community...)
}

// Seats returns the public chip state per seat, nil for empty seats.
func (t *Table) Seats() [NumSeats]*Seat {
	var out [NumSeats]*Seat
	for i, s := range t.seats {
		if s != nil {
			out[i] = &Seat{
				TotalChips: s.stack + t.committed[i],
				Stack:      s.stack,
				BetSize:    t.betSize[i],
			}
		}
	}
	return out
}

// HandPlayers returns chip state for seats still in the hand, nil
// elsewhere. Only meaningful while a hand is in progress.
func (t *Table) HandPlayers() [NumSeats]*Seat {
	seats := t.Seats()
	var out [NumSeats]*Seat
	for i := range seats {
		if t.inHand[i] {
			out[i] = seats[i]
		}
	}
	return out
}

// NumActivePlayers counts seats still in the hand.
func (t *Table) NumActivePlayers() int { return t.countInHand() }

// HoleCards returns the hole cards dealt to a seat this hand, or nil.
func (t *Table) HoleCards(index int) []Card {
	if index < 0 || index >= NumSeats || !t.handInProgress {
		return nil
	}
	return append([]Card(nil), t.holeCards[index]...)
}

// LegalActions computes what the player to act may do. Only meaningful
// while a betting round is in progress.
func (t *Table) LegalActions() LegalActions {
	if !t.bettingOpen || t.toAct < 0 {
		return LegalActions{}
	}
	seat := t.toAct
	owe := t.biggestBet - t.betSize[seat]
	allInTotal := t.betSize[seat] + t.seats[seat].stack

	la := LegalActions{Actions: []Action{ActionFold}}
	if owe <= 0 {
		la.Actions = append(la.Actions, ActionCheck)
	} else {
		la.Actions = append(la.Actions, ActionCall)
	}
	if t.biggestBet == 0 && allInTotal > 0 {
		la.Actions = append(la.Actions, ActionBet)
		min := t.forcedBets.BigBlind
		if min > allInTotal {
			min = allInTotal
		}
		la.ChipRange = &ChipRange{Min: min, Max: allInTotal}
	} else if t.biggestBet > 0 && allInTotal > t.biggestBet {
		la.Actions = append(la.Actions, ActionRaise)
		min := t.biggestBet + t.minRaiseDelta
		if min > allInTotal {
			min = allInTotal
		}
		la.ChipRange = &ChipRange{Min: min, Max: allInTotal}
	}
	return la
}

// Pots returns the current pot layering, including live bets.
func (t *Table) Pots() []Pot {
	if !t.handInProgress {
		return nil
	}
	return t.computePots()
}

// Winners returns the per-pot winners of the last completed hand. Only
// meaningful when no hand is in progress.
func (t *Table) Winners() [][]Winner { return t.winners }
