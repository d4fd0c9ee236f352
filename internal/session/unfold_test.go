// internal/session/unfold_test.go
package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openholdem/poker-service/internal/table"
)

// fourHanded seats four players and starts a hand. With the button at
// seat 0 and blinds at 1 and 2, seat 3 opens the action, so the unfold
// scan visits seats 0, 1, 2 in order.
func fourHanded(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.NewTable("t1", table.ForcedBets{SmallBlind: 1, BigBlind: 2})
	for i := 0; i < 4; i++ {
		require.NoError(t, tbl.SitDown(i, 200))
	}
	require.NoError(t, tbl.StartHand())
	require.Equal(t, 3, tbl.PlayerToAct())
	return tbl
}

func TestUnfoldKeepsPresetsUpToFirstEmptySlot(t *testing.T) {
	tbl := fourHanded(t)

	require.NoError(t, tbl.SetAutomaticAction(0, table.AutoCallAny))
	require.NoError(t, tbl.SetAutomaticAction(1, table.AutoCheckFold))
	// Seat 2 holds no preset: nothing follows it in scan order, so both
	// earlier presets survive.

	view := unfoldAutomaticActions(tbl)
	assert.Equal(t, table.AutoCallAny, view.presets[0])
	assert.Equal(t, table.AutoCheckFold, view.presets[1])
	assert.Equal(t, table.AutomaticAction(""), view.presets[2])
	assert.Empty(t, view.invalidate)
}

func TestUnfoldNullifiesPresetsAfterEmptySlot(t *testing.T) {
	tbl := fourHanded(t)

	// Seat 0 is first in scan order and empty: the seats behind it
	// cannot safely auto-execute, whatever they preset.
	require.NoError(t, tbl.SetAutomaticAction(1, table.AutoCallAny))
	require.NoError(t, tbl.SetAutomaticAction(2, table.AutoCheckFold))

	view := unfoldAutomaticActions(tbl)
	assert.Equal(t, table.AutomaticAction(""), view.presets[1])
	assert.Equal(t, table.AutomaticAction(""), view.presets[2])
	assert.ElementsMatch(t, []int{1, 2}, view.invalidate)

	applyInvalidations(tbl, view)
	presets := tbl.AutomaticActions()
	assert.Equal(t, table.AutomaticAction(""), presets[1])
	assert.Equal(t, table.AutomaticAction(""), presets[2])
}

func TestUnfoldOutsideBettingRoundIsEmpty(t *testing.T) {
	tbl := table.NewTable("t1", table.ForcedBets{SmallBlind: 1, BigBlind: 2})
	view := unfoldAutomaticActions(tbl)
	assert.Equal(t, unfoldView{}, view)
}

func TestPresentCheckFoldDependsOnHandMembership(t *testing.T) {
	tbl := fourHanded(t)
	preBets := betsSnapshot(tbl)

	require.NoError(t, tbl.SetAutomaticAction(0, table.AutoCheckFold))
	view := unfoldAutomaticActions(tbl)

	// Seat 3 raises; seat 0's check/fold fires as a fold on its turn.
	require.NoError(t, tbl.ActionTaken(table.ActionRaise, 6))
	require.False(t, tbl.HandPlayers()[0] != nil)

	out := presentAutomaticActions(tbl, view, preBets)
	require.NotNil(t, out)
	require.NotNil(t, out[0])
	assert.Equal(t, "fold", *out[0])
}

func TestPresentCallAnyUsesBetDelta(t *testing.T) {
	tbl := fourHanded(t)
	preBets := betsSnapshot(tbl)

	require.NoError(t, tbl.SetAutomaticAction(0, table.AutoCallAny))
	view := unfoldAutomaticActions(tbl)

	// Facing a raise, the preset resolves to a call and the seat's bet
	// grows past the snapshot.
	require.NoError(t, tbl.ActionTaken(table.ActionRaise, 6))
	out := presentAutomaticActions(tbl, view, preBets)
	require.NotNil(t, out)
	require.NotNil(t, out[0])
	assert.Equal(t, "call", *out[0])
}
