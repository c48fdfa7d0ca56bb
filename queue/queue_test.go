package queue

import (
	"testing"
	"time"

	"dio64board/wire"
)

func TestAddRemoveFIFOOrder(t *testing.T) {
	q := New(4)
	q.Add(&Entry{Cmd: wire.CmdOutWrite, Data: 1}, false)
	q.Add(&Entry{Cmd: wire.CmdOutStart, Data: 2}, false)

	e, ok := q.Remove(0)
	if !ok || e.Data.(int) != 1 {
		t.Fatalf("Remove() = %+v, %v, want Data=1", e, ok)
	}
	e, ok = q.Remove(0)
	if !ok || e.Data.(int) != 2 {
		t.Fatalf("Remove() = %+v, %v, want Data=2", e, ok)
	}
}

func TestAddPriorityPrepends(t *testing.T) {
	q := New(4)
	q.Add(&Entry{Cmd: wire.CmdOutWrite}, false)
	q.Add(&Entry{Cmd: wire.CmdOutStop}, true)

	e, ok := q.Remove(0)
	if !ok || e.Cmd != wire.CmdOutStop {
		t.Fatalf("Remove() head = %v, want CmdOutStop", e.Cmd)
	}
}

func TestRemoveTimesOutWhenEmpty(t *testing.T) {
	q := New(1)
	start := time.Now()
	_, ok := q.Remove(20 * time.Millisecond)
	if ok {
		t.Fatal("Remove() on empty queue should time out")
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatal("Remove() returned before its timeout elapsed")
	}
}

func TestAddRejectsOverCapacity(t *testing.T) {
	q := New(1)
	if !q.Add(&Entry{Cmd: wire.CmdAck}, false) {
		t.Fatal("first Add should succeed")
	}
	if q.Add(&Entry{Cmd: wire.CmdNack}, false) {
		t.Fatal("Add beyond capacity should fail")
	}
}

func TestUpdateCollapsesSameCommandTail(t *testing.T) {
	q := New(4)
	q.Add(&Entry{Cmd: wire.CmdGetStatus, Data: 1}, false)

	evicted := q.Update(&Entry{Cmd: wire.CmdGetStatus, Data: 2})
	if evicted == nil || evicted.Data.(int) != 1 {
		t.Fatalf("Update() evicted = %v, want old entry with Data=1", evicted)
	}
	if got := q.Len(); got != 1 {
		t.Fatalf("Len() after collapse = %d, want 1", got)
	}
	e, ok := q.Remove(0)
	if !ok || e.Data.(int) != 2 {
		t.Fatalf("Remove() after collapse = %+v, want Data=2", e)
	}
}

func TestUpdateAppendsOnDifferentCommand(t *testing.T) {
	q := New(4)
	q.Add(&Entry{Cmd: wire.CmdGetStatus}, false)
	if evicted := q.Update(&Entry{Cmd: wire.CmdOutStop}); evicted != nil {
		t.Fatalf("Update() with differing command should not evict, got %v", evicted)
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestSemaphoreCountMatchesLength(t *testing.T) {
	q := New(4)
	q.Add(&Entry{Cmd: wire.CmdAck}, false)
	q.Add(&Entry{Cmd: wire.CmdNack}, false)
	if got, want := len(q.sem), q.Len(); got != want {
		t.Fatalf("semaphore count = %d, want %d (queue length)", got, want)
	}
	q.Remove(0)
	if got, want := len(q.sem), q.Len(); got != want {
		t.Fatalf("semaphore count = %d, want %d (queue length) after Remove", got, want)
	}
}

func TestPeekDoesNotDetach(t *testing.T) {
	q := New(4)
	q.Add(&Entry{Cmd: wire.CmdOutStart, Data: 42}, false)

	got, ok := q.Peek(0)
	if !ok || got.Data.(int) != 42 {
		t.Fatalf("Peek() = %+v, %v, want Data=42", got, ok)
	}
	if got := q.Len(); got != 1 {
		t.Fatalf("Len() after Peek = %d, want 1 (Peek must not detach)", got)
	}
	e, ok := q.Remove(0)
	if !ok || e.Data.(int) != 42 {
		t.Fatalf("Remove() after Peek = %+v, want Data=42", e)
	}
}
