// internal/session/unfold.go
package session

import "github.com/openholdem/poker-service/internal/table"

// unfoldView is the projection of which preset automatic actions will
// execute downstream of the player to act, plus the seats whose presets
// have been invalidated by an earlier empty slot and must be cleared.
type unfoldView struct {
	presets    [table.NumSeats]table.AutomaticAction
	invalidate []int
}

// unfoldAutomaticActions scans circularly from the seat after the player
// to act, visiting only seats eligible to hold a preset. The first
// eligible seat without a preset makes every later preset unsafe: the
// deciding player's real choice may change the betting context those
// presets assumed, so they are marked for clearing rather than shown.
func unfoldAutomaticActions(tbl *table.Table) unfoldView {
	var view unfoldView
	if !tbl.IsHandInProgress() || !tbl.IsBettingRoundInProgress() {
		return view
	}

	presets := tbl.AutomaticActions()
	actor := tbl.PlayerToAct()
	nullify := false
	for n := 1; n < table.NumSeats; n++ {
		i := (actor + n) % table.NumSeats
		if !tbl.CanSetAutomaticAction(i) {
			continue
		}
		if nullify {
			if presets[i] != "" {
				view.invalidate = append(view.invalidate, i)
			}
			continue
		}
		if presets[i] == "" {
			nullify = true
			continue
		}
		view.presets[i] = presets[i]
	}
	return view
}

// applyInvalidations clears the presets an unfolding pass marked unsafe.
func applyInvalidations(tbl *table.Table, view unfoldView) {
	for _, i := range view.invalidate {
		_ = tbl.SetAutomaticAction(i, "")
	}
}

// presentAutomaticActions maps the unfolded presets to the concrete
// actions clients should display, resolved against post-action state:
// "check/fold" became a check only if the seat is still in the hand, and
// "call any" became a call only if the seat's bet grew since the
// pre-action snapshot. Comparing bet sizes is a heuristic: if several
// automatic actions fire between the snapshots it can misattribute a
// check, which matches longstanding client expectations.
func presentAutomaticActions(tbl *table.Table, view unfoldView, preBets [table.NumSeats]int) []*string {
	any := false
	for _, a := range view.presets {
		if a != "" {
			any = true
			break
		}
	}
	if !any {
		return nil
	}

	handPlayers := tbl.HandPlayers()
	seats := tbl.Seats()
	out := make([]*string, table.NumSeats)
	for i, a := range view.presets {
		if a == "" {
			continue
		}
		var resolved string
		switch a {
		case table.AutoCheckFold:
			if handPlayers[i] != nil {
				resolved = string(table.ActionCheck)
			} else {
				resolved = string(table.ActionFold)
			}
		case table.AutoCallAny:
			bet := 0
			if seats[i] != nil {
				bet = seats[i].BetSize
			}
			if bet > preBets[i] {
				resolved = string(table.ActionCall)
			} else {
				resolved = string(table.ActionCheck)
			}
		default:
			resolved = string(a)
		}
		out[i] = &resolved
	}
	return out
}
