package statusagg

import (
	"testing"

	"dio64board/errcode"
	"dio64board/wire"
)

func TestAggregateEndEndError(t *testing.T) {
	members := []Member{
		{TabIndex: 0, Status: wire.ClientStatus{StatusBits: wire.StatusEnd}},
		{TabIndex: 1, Status: wire.ClientStatus{StatusBits: wire.StatusEnd}},
		{TabIndex: 2, Status: wire.ClientStatus{StatusBits: wire.StatusError}},
	}
	got := Aggregate(members, false)
	if got.Code != errcode.BoardState {
		t.Fatalf("Code = %v, want BoardState", got.Code)
	}
	if got.TabIndex != 2 {
		t.Fatalf("TabIndex = %d, want 2 (the error board)", got.TabIndex)
	}
}

func TestAggregateRunDominatesEnd(t *testing.T) {
	members := []Member{
		{TabIndex: 0, Status: wire.ClientStatus{StatusBits: wire.StatusRun}},
		{TabIndex: 1, Status: wire.ClientStatus{StatusBits: wire.StatusEnd}},
		{TabIndex: 2, Status: wire.ClientStatus{StatusBits: wire.StatusEnd}},
	}
	got := Aggregate(members, false)
	if !got.Code.Ok() {
		t.Fatalf("Code = %v, want success", got.Code)
	}
	if got.TabIndex != 0 {
		t.Fatalf("TabIndex = %d, want 0 (the running board)", got.TabIndex)
	}
}

func TestAggregateAllEndReturnsEnd(t *testing.T) {
	members := []Member{
		{TabIndex: 0, Status: wire.ClientStatus{StatusBits: wire.StatusEnd}},
		{TabIndex: 1, Status: wire.ClientStatus{StatusBits: wire.StatusEnd}},
		{TabIndex: 2, Status: wire.ClientStatus{StatusBits: wire.StatusEnd}},
	}
	got := Aggregate(members, false)
	if !got.Code.Ok() {
		t.Fatalf("Code = %v, want success", got.Code)
	}
	if got.Status.StatusBits&wire.StatusEnd == 0 {
		t.Fatal("expected the aggregated status to carry the End bit")
	}
}

func TestAggregateClockLostDistinguishedFromBoardState(t *testing.T) {
	members := []Member{
		{TabIndex: 0, Status: wire.ClientStatus{StatusBits: wire.StatusError | wire.StatusExtLocked}, ExtClockLockLost: true},
	}
	got := Aggregate(members, false)
	if got.Code != errcode.ClockLost {
		t.Fatalf("Code = %v, want ClockLost", got.Code)
	}
}

func TestAggregateSingleMember(t *testing.T) {
	members := []Member{
		{TabIndex: 0, Status: wire.ClientStatus{StatusBits: wire.StatusRun}},
	}
	got := Aggregate(members, false)
	if got.TabIndex != 0 || !got.Code.Ok() {
		t.Fatalf("Aggregate single member = %+v", got)
	}
}

func TestAggregateIgnoreClockLossDowngradesToSuccess(t *testing.T) {
	members := []Member{
		{TabIndex: 0, Status: wire.ClientStatus{StatusBits: wire.StatusError | wire.StatusExtLocked | wire.StatusEnd}, ExtClockLockLost: true},
	}
	got := Aggregate(members, true)
	if !got.Code.Ok() {
		t.Fatalf("Code = %v, want success with ignore_clock_loss set", got.Code)
	}
	if got.Status.StatusBits&wire.StatusEnd == 0 {
		t.Fatal("expected the downgraded member's End bit to still be reported")
	}
}

func TestAggregateIgnoreClockLossDoesNotHideOtherErrors(t *testing.T) {
	members := []Member{
		{TabIndex: 0, Status: wire.ClientStatus{StatusBits: wire.StatusError}},
	}
	got := Aggregate(members, true)
	if got.Code != errcode.BoardState {
		t.Fatalf("Code = %v, want BoardState (non-clock error must still surface)", got.Code)
	}
}
