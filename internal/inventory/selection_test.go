package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var phone = LineItem{ProductID: "phone", VariantID: "128gb"}

func avail(ids ...string) []Unit {
	out := make([]Unit, len(ids))
	for i, id := range ids {
		out[i] = Unit{ID: id, Kind: KindIMEI, ProductID: phone.ProductID, VariantID: phone.VariantID, Status: StatusAvailable}
	}
	return out
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to UnitStatus
		want     bool
	}{
		{StatusAvailable, StatusReserved, true},
		{StatusAvailable, StatusSold, true},
		{StatusReserved, StatusSold, true},
		{StatusReserved, StatusAvailable, true},
		{StatusSold, StatusAvailable, false},
		{StatusSold, StatusReturned, true},
		{StatusDamaged, StatusAvailable, false},
		{StatusDamaged, StatusRepair, true},
		{StatusWarranty, StatusRepair, true},
		{StatusReserved, StatusReserved, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestParseUnitStatusAndKind(t *testing.T) {
	st, err := ParseUnitStatus(" Repair ")
	require.NoError(t, err)
	assert.Equal(t, StatusRepair, st)
	_, err = ParseUnitStatus("lost")
	assert.Error(t, err)

	k, err := ParseIdentifierKind("")
	require.NoError(t, err)
	assert.Equal(t, KindSerial, k)
	k, err = ParseIdentifierKind("MAC")
	require.NoError(t, err)
	assert.Equal(t, KindMAC, k)
	_, err = ParseIdentifierKind("rfid")
	assert.Error(t, err)
}

func TestNewSelection_Validation(t *testing.T) {
	_, err := NewSelection(phone, 3, avail("a", "b"))
	assert.True(t, IsInsufficientCandidates(err))

	_, err = NewSelection(phone, 2, avail("a", "a"))
	assert.True(t, IsInsufficientCandidates(err), "duplicates count once")

	_, err = NewSelection(phone, 2, avail("ab12", "AB12"))
	require.Error(t, err)
	assert.Equal(t, CodeInvalidCandidate, CodeOf(err))
	assert.Contains(t, err.Error(), "differ only by case")

	sel, err := NewSelection(phone, 1, avail("AB12", " AB12 "))
	require.NoError(t, err)
	assert.Len(t, sel.Candidates(), 1)

	_, err = NewSelection(phone, 0, avail("a"))
	assert.True(t, IsCountMismatch(err))

	wrong := avail("a")
	wrong[0].VariantID = "256gb"
	_, err = NewSelection(phone, 1, wrong)
	assert.Equal(t, CodeInvalidCandidate, CodeOf(err))

	sold := avail("a")
	sold[0].Status = StatusSold
	_, err = NewSelection(phone, 1, sold)
	assert.Equal(t, CodeInvalidCandidate, CodeOf(err))
}

func TestSelection_Pick(t *testing.T) {
	sel, err := NewSelection(phone, 2, avail("IMEI-001", "IMEI-002", "IMEI-003"))
	require.NoError(t, err)

	require.NoError(t, sel.Pick(" imei-003 "))
	require.NoError(t, sel.Pick("IMEI-003"), "duplicate pick is a no-op")
	assert.Equal(t, 1, sel.Remaining())
	assert.False(t, sel.Complete())

	err = sel.Pick("IMEI-999")
	assert.Equal(t, CodeUnknownUnit, CodeOf(err))

	require.NoError(t, sel.Pick("IMEI-001"))
	assert.True(t, sel.Complete())

	err = sel.Pick("IMEI-002")
	assert.True(t, IsCountMismatch(err))

	picked := sel.Picked()
	require.Len(t, picked, 2)
	assert.Equal(t, "IMEI-003", picked[0].ID)
	assert.Equal(t, "IMEI-001", picked[1].ID)

	assert.True(t, sel.Unpick("imei-003"))
	assert.False(t, sel.Unpick("imei-003"))
	assert.Equal(t, 1, sel.Remaining())
}

func TestSelection_Search(t *testing.T) {
	sel, err := NewSelection(phone, 1, avail("AA-100", "AB-200", "BB-300"))
	require.NoError(t, err)
	require.NoError(t, sel.Pick("AA-100"))

	found := sel.Search("a")
	require.Len(t, found, 1)
	assert.Equal(t, "AB-200", found[0].ID)

	assert.Len(t, sel.Search(""), 2)
}

func TestSelection_PickFirst(t *testing.T) {
	sel, err := NewSelection(phone, 2, avail("a", "b", "c"))
	require.NoError(t, err)
	require.NoError(t, sel.Pick("c"))

	sel.PickFirst()

	assert.True(t, sel.Complete())
	ids := []string{}
	for _, u := range sel.Picked() {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"c", "a"}, ids)
}

func TestStage_Transition(t *testing.T) {
	for _, st := range []Stage{StageReserve, StageSell, StageFinalize, StageRelease} {
		from, to, err := st.Transition()
		require.NoError(t, err)
		assert.True(t, CanTransition(from, to), st)
	}
	_, err := ParseStage("ship")
	assert.Error(t, err)
}
