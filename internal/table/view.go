// internal/table/view.go
package table

// View is the client-facing snapshot of a table. Fields that are only
// meaningful in certain phases are omitted outside them, so clients never
// see stale turn or street state.
type View struct {
	ID           string                    `json:"id"`
	ForcedBets   ForcedBets                `json:"forcedBets"`
	NumOfSeats   int                       `json:"numOfSeats"`
	Seats        [NumSeats]*Seat           `json:"seats"`
	Reservations [NumSeats]*Reservation    `json:"reservations"`

	IsHandInProgress bool `json:"isHandInProgress"`

	// Present only while a hand is in progress.
	IsBettingRoundInProgress  *bool            `json:"isBettingRoundInProgress,omitempty"`
	AreBettingRoundsCompleted *bool            `json:"areBettingRoundsCompleted,omitempty"`
	RoundOfBetting            Round            `json:"roundOfBetting,omitempty"`
	CommunityCards            []Card           `json:"communityCards,omitempty"`
	Pots                      []Pot            `json:"pots,omitempty"`
	Button                    *int             `json:"button,omitempty"`
	HandPlayers               *[NumSeats]*Seat `json:"handPlayers,omitempty"`

	// Present only while a betting round is in progress.
	PlayerToAct  *int          `json:"playerToAct,omitempty"`
	LegalActions *LegalActions `json:"legalActions,omitempty"`

	// Present only between hands, after a showdown.
	Winners [][]Winner `json:"winners,omitempty"`
}

// View renders the table's current public state.
func (t *Table) View() View {
	v := View{
		ID:               t.id,
		ForcedBets:       t.forcedBets,
		NumOfSeats:       NumSeats,
		Seats:            t.Seats(),
		Reservations:     t.Reservations(),
		IsHandInProgress: t.handInProgress,
	}

	if t.handInProgress {
		betting := t.bettingOpen
		done := t.roundsDone
		v.IsBettingRoundInProgress = &betting
		v.AreBettingRoundsCompleted = &done
		v.RoundOfBetting = t.round
		v.CommunityCards = t.CommunityCards()
		v.Pots = t.Pots()
		button := t.button
		v.Button = &button
		handPlayers := t.HandPlayers()
		v.HandPlayers = &handPlayers

		if t.bettingOpen {
			toAct := t.toAct
			v.PlayerToAct = &toAct
			la := t.LegalActions()
			v.LegalActions = &la
		}
	} else {
		v.Winners = t.winners
	}
	return v
}
