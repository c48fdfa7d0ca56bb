package registry

import "testing"

func TestInsertAssignsMonotonicTabIndex(t *testing.T) {
	r := New()
	b1 := &Board{Handle: r.NewHandle(), Addr: "10.0.0.1:49701", UserID: 1}
	b2 := &Board{Handle: r.NewHandle(), Addr: "10.0.0.2:49701", UserID: 2}
	r.Insert(b1)
	r.Insert(b2)
	if b2.TabIndex <= b1.TabIndex {
		t.Fatalf("tab indices not monotonic: %d, %d", b1.TabIndex, b2.TabIndex)
	}
}

func TestTabIndexSurvivesSlotReuse(t *testing.T) {
	r := New()
	b1 := &Board{Handle: r.NewHandle(), Addr: "10.0.0.1:49701", UserID: 1}
	slot1 := r.Insert(b1)
	r.Remove(slot1)

	b2 := &Board{Handle: r.NewHandle(), Addr: "10.0.0.2:49701", UserID: 2}
	slot2 := r.Insert(b2)
	if slot2 != slot1 {
		t.Fatalf("expected freelist slot reuse, got new slot %d want %d", slot2, slot1)
	}
	if b2.TabIndex <= b1.TabIndex {
		t.Fatalf("tab index must stay monotonic even when slab slot is recycled: b1=%d b2=%d", b1.TabIndex, b2.TabIndex)
	}
}

func TestNewHandleUnique(t *testing.T) {
	r := New()
	seen := make(map[Handle]bool)
	for i := 0; i < 1000; i++ {
		h := r.NewHandle()
		if seen[h] {
			t.Fatalf("NewHandle produced a duplicate: %d", h)
		}
		seen[h] = true
		r.Insert(&Board{Handle: h, UserID: UserID(i)})
	}
}

func TestLookupAddrAtMostOnePerHostPort(t *testing.T) {
	r := New()
	addr := "10.0.0.1:49701"
	b := &Board{Handle: r.NewHandle(), Addr: addr, UserID: 1}
	r.Insert(b)

	if _, _, ok := r.LookupAddr(addr); !ok {
		t.Fatal("expected to find inserted board by addr")
	}
	if _, _, ok := r.LookupAddr("10.0.0.2:49701"); ok {
		t.Fatal("unexpected match for an address never inserted")
	}
}

func TestMarkDeferredCloseHidesFromLookupUser(t *testing.T) {
	r := New()
	b := &Board{Handle: r.NewHandle(), Addr: "10.0.0.1:49701", UserID: 7}
	slot := r.Insert(b)

	if _, _, ok := r.LookupUser(7); !ok {
		t.Fatal("expected board to be addressable by user id before deferred close")
	}
	r.MarkDeferredClose(slot)
	if _, _, ok := r.LookupUser(7); ok {
		t.Fatal("board must not be addressable by user id during its deferred-close window")
	}
	if got, ok := r.Lookup(slot); !ok || got.UserID != NoneID {
		t.Fatalf("Lookup after MarkDeferredClose = %+v, %v, want UserID=NoneID", got, ok)
	}
	// Still reachable by handle and addr while the window is open.
	if _, _, ok := r.LookupHandle(b.Handle); !ok {
		t.Fatal("board must remain reachable by handle during its deferred-close window")
	}
	if _, _, ok := r.LookupAddr(b.Addr); !ok {
		t.Fatal("board must remain reachable by addr during its deferred-close window")
	}
}

func TestReopenRestoresUserIDWithoutChangingHandleOrTabIndex(t *testing.T) {
	r := New()
	b := &Board{Handle: r.NewHandle(), Addr: "10.0.0.1:49701", UserID: 7}
	slot := r.Insert(b)
	wantHandle, wantTab := b.Handle, b.TabIndex

	r.MarkDeferredClose(slot)
	r.Reopen(slot, 7)

	got, ok := r.Lookup(slot)
	if !ok {
		t.Fatal("expected board to still be in the slab after Reopen")
	}
	if got.Handle != wantHandle || got.TabIndex != wantTab {
		t.Fatalf("Reopen changed Handle/TabIndex: got %d/%d, want %d/%d", got.Handle, got.TabIndex, wantHandle, wantTab)
	}
	if _, _, ok := r.LookupUser(7); !ok {
		t.Fatal("expected board addressable by user id again after Reopen")
	}
}

func TestAllOrderedByTabIndex(t *testing.T) {
	r := New()
	var handles []Handle
	for i := 0; i < 5; i++ {
		h := r.NewHandle()
		handles = append(handles, h)
		r.Insert(&Board{Handle: h, UserID: UserID(i)})
	}
	// Remove and reinsert one in the middle to perturb slab order.
	_, slot, _ := r.LookupHandle(handles[2])
	r.Remove(slot)
	r.Insert(&Board{Handle: r.NewHandle(), UserID: 99})

	all := r.All()
	for i := 1; i < len(all); i++ {
		if all[i].TabIndex <= all[i-1].TabIndex {
			t.Fatalf("All() not strictly increasing by TabIndex at %d: %d <= %d", i, all[i].TabIndex, all[i-1].TabIndex)
		}
	}
}

func TestAllocateTabThenInsertAtPreservesReservedIndex(t *testing.T) {
	r := New()
	tab := r.AllocateTab()
	b := &Board{Handle: r.NewHandle(), TabIndex: tab, UserID: 1}
	slot := r.InsertAt(b)

	got, ok := r.Lookup(slot)
	if !ok || got.TabIndex != tab {
		t.Fatalf("Lookup after InsertAt = %+v, %v, want TabIndex=%d", got, ok, tab)
	}
}

func TestSetIgnoreFlagsRecord(t *testing.T) {
	r := New()
	b := &Board{Handle: r.NewHandle(), UserID: 1}
	slot := r.Insert(b)

	r.SetIgnore(slot, true)
	got, ok := r.Lookup(slot)
	if !ok || !got.Ignore {
		t.Fatalf("Lookup after SetIgnore(true) = %+v, %v, want Ignore=true", got, ok)
	}
}

func TestMembersOrdersSecondariesByTabIndex(t *testing.T) {
	r := New()
	primary := &Board{Handle: r.NewHandle(), UserID: 1, PrimaryTab: PrimaryTabNone}
	primarySlot := r.Insert(primary)

	sec2 := &Board{Handle: r.NewHandle(), UserID: 2, PrimaryTab: primary.TabIndex}
	r.Insert(sec2)
	sec3 := &Board{Handle: r.NewHandle(), UserID: 3, PrimaryTab: primary.TabIndex}
	r.Insert(sec3)

	members := r.Members(primarySlot)
	if len(members) != 3 {
		t.Fatalf("Members() returned %d boards, want 3", len(members))
	}
	if members[0] != primary {
		t.Fatalf("Members()[0] = %+v, want the primary first", members[0])
	}
	if members[1].TabIndex >= members[2].TabIndex {
		t.Fatal("secondaries must be ordered by ascending tab index")
	}
}
