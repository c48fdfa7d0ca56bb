// Package api is the public façade: the sole external entry point
// (spec.md §4.4). It serializes every call under one process-wide lock,
// drives the board registry and per-board workers, and implements the
// linked-group fan-out/aggregation rules.
package api

import (
	"context"
	"fmt"
	"time"

	"dio64board/board"
	"dio64board/boardconfig"
	"dio64board/bus"
	"dio64board/errcode"
	"dio64board/lockfile"
	"dio64board/observer"
	"dio64board/registry"
)

// BaseioSingle is the "default value" sentinel meaning a single,
// non-linked board (spec.md §4.4).
const BaseioSingle = 0

// Handle is the opaque per-call identity returned by Open/OpenResource.
type Handle = registry.Handle

// Facade is the single public entry point coordinating every board.
type Facade struct {
	reg         *registry.Registry
	obs         *observer.Observer
	policy      board.ConnectPolicy
	lockTimeout time.Duration
	deferClose  time.Duration
	boardCfg    *boardconfig.Config
}

// Option configures a Facade at construction time.
type Option func(*Facade)

// WithConnectPolicy overrides the connect-failure policy used for every
// Open/OpenResource call.
func WithConnectPolicy(p board.ConnectPolicy) Option {
	return func(f *Facade) { f.policy = p }
}

// WithDeferredClose overrides the default deferred-close window.
func WithDeferredClose(d time.Duration) Option {
	return func(f *Facade) { f.deferClose = d }
}

// WithBoardConfig supplies the strobe-delay/sync-wait/sync-phase/
// ignore_clock_loss defaults OutConfig uses to resolve wire.AUTO fields and
// OutStatus uses to downgrade a lost external clock (spec.md §6, §7;
// boardconfig.Load/Parse reads the on-disk file).
func WithBoardConfig(cfg boardconfig.Config) Option {
	return func(f *Facade) { f.boardCfg = &cfg }
}

// New creates a Facade backed by its own registry and observer bus.
func New(opts ...Option) *Facade {
	b := bus.NewBus(8)
	f := &Facade{
		reg:         registry.New(),
		obs:         observer.New(b.NewConnection("api")),
		policy:      board.DefaultConnectPolicy,
		lockTimeout: time.Second,
		deferClose:  board.DeferredCloseDefault,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Observer exposes the façade's event bus for a dashboard to subscribe to.
func (f *Facade) Observer() *observer.Observer { return f.obs }

func (f *Facade) withLock(fn func() error) error {
	l, err := lockfile.Acquire(f.lockTimeout)
	if err != nil {
		return err
	}
	defer l.Release()
	return fn()
}

func workerOf(b *registry.Board) *board.Worker {
	w, _ := b.Worker.(*board.Worker)
	return w
}

// OpenResource opens resourceAddr ("host:port") for userID. baseio ==
// BaseioSingle opens one board; baseio >= 2 opens a linked group of
// baseio boards, the first becoming primary (spec.md §4.4).
func (f *Facade) OpenResource(ctx context.Context, resourceAddr string, userID registry.UserID, baseio int) (Handle, error) {
	var handle Handle
	var retErr error
	err := f.withLock(func() error {
		handle, retErr = f.openLocked(ctx, resourceAddr, userID, baseio)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return handle, retErr
}

// Open opens defaultAddr as a single, unlinked board (spec.md §4.4:
// "If baseio is the default value, a single board is opened").
func (f *Facade) Open(ctx context.Context, defaultAddr string, userID registry.UserID) (Handle, error) {
	return f.OpenResource(ctx, defaultAddr, userID, BaseioSingle)
}

func (f *Facade) openLocked(ctx context.Context, resourceAddr string, userID registry.UserID, baseio int) (Handle, error) {
	count := baseio
	if count < 2 {
		count = 1
	}

	var created []int // slots created by this call, for rollback on error
	var primaryHandle Handle
	var primaryTab int
	ignoredSecondary := false

	for i := 0; i < count; i++ {
		addr := resourceAddr
		if i > 0 {
			a, err := incrementAddr(resourceAddr, i)
			if err != nil {
				f.rollback(created)
				return 0, err
			}
			addr = a
		}

		if existing, slot, ok := f.reg.LookupAddr(addr); ok {
			w := workerOf(existing)
			if w == nil || w.Reopen() == nil {
				// Re-open path: release the deferred-close window.
				f.reg.Reopen(slot, userID)
				if i == 0 {
					primaryHandle = existing.Handle
					primaryTab = existing.TabIndex
				}
				continue
			}
			// The worker has already exited (its deferred-close window
			// expired): drop the stale record and dial the board afresh.
			f.reg.Remove(slot)
		}

		role := board.RolePrimary
		if i > 0 {
			role = board.RoleSecondary
		}
		tab := f.reg.AllocateTab()
		w, err := board.Dial(ctx, addr, tab, role, f.obs, f.policy)
		if err != nil {
			if errcode.Of(err) == errcode.ConnectIgnore && i > 0 {
				ignoredSecondary = true
				f.obs.BoardIgnored(tab, addr)
				continue
			}
			f.rollback(created)
			return 0, err
		}

		b := &registry.Board{
			UserID:     userID,
			Handle:     f.reg.NewHandle(),
			TabIndex:   tab,
			Addr:       addr,
			Worker:     w,
			Ignore:     false,
			PrimaryTab: registry.PrimaryTabNone,
		}
		if i > 0 {
			b.PrimaryTab = primaryTab
		}
		slot := f.reg.InsertAt(b)
		created = append(created, slot)

		if i == 0 {
			primaryHandle = b.Handle
			primaryTab = b.TabIndex
		}
	}

	if ignoredSecondary {
		return primaryHandle, errcode.Wrapf("api.Open", errcode.ConnectIgnore, "a secondary board was ignored")
	}
	return primaryHandle, nil
}

func (f *Facade) rollback(slots []int) {
	for _, slot := range slots {
		b, ok := f.reg.Lookup(slot)
		if !ok {
			continue
		}
		if w := workerOf(b); w != nil {
			w.RequestExit()
		}
		f.reg.Remove(slot)
	}
}

// members resolves handle to its linked-group membership: the board
// itself if unlinked/primary, or the full group if handle names a
// primary with live secondaries.
func (f *Facade) members(handle Handle) ([]*registry.Board, int, error) {
	primary, slot, ok := f.reg.LookupHandle(handle)
	if !ok {
		return nil, 0, errcode.Wrapf("api", errcode.NoWorker, "no board for handle")
	}
	if primary.UserID == registry.NoneID {
		return nil, 0, errcode.Wrapf("api", errcode.NoWorker, "board is in its deferred-close window")
	}
	group := f.reg.Members(slot)
	live := make([]*registry.Board, 0, len(group))
	for _, b := range group {
		if !b.Ignore {
			live = append(live, b)
		}
	}
	return live, primary.TabIndex, nil
}

// Close closes handle (and its linked group, if any), using deferFor as
// the deferred-close grace window. deferFor == 0 closes immediately
// (spec.md §4.4, §5).
func (f *Facade) Close(handle Handle, deferFor time.Duration) error {
	return f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		for _, b := range members {
			w := workerOf(b)
			if w == nil {
				continue
			}
			if err := w.Close(deferFor); err != nil {
				return err
			}
			if _, slot, ok := f.reg.LookupHandle(b.Handle); ok {
				f.reg.MarkDeferredClose(slot)
			}
		}
		return nil
	})
}

// Load is accepted for compatibility (spec.md §6): it does nothing and
// succeeds for any handle the registry knows, returning NoWorker for an
// unknown handle.
func (f *Facade) Load(handle Handle) error {
	if _, _, ok := f.reg.LookupHandle(handle); !ok {
		return errcode.Wrapf("api.Load", errcode.NoWorker, "no board for handle")
	}
	return nil
}

// ExitAll tears down every live board worker, for process shutdown.
func (f *Facade) ExitAll() error {
	return f.withLock(func() error {
		for _, b := range f.reg.All() {
			if w := workerOf(b); w != nil {
				w.RequestExit()
			}
			if _, slot, ok := f.reg.LookupHandle(b.Handle); ok {
				f.reg.Remove(slot)
			}
		}
		return nil
	})
}

// RegisterCallback installs a per-board status callback on the nth member
// of handle's group (spec.md §4.6).
func (f *Facade) RegisterCallback(handle Handle, n int, cb board.StatusCallback) error {
	return f.withLock(func() error {
		members, _, err := f.members(handle)
		if err != nil {
			return err
		}
		if n < 0 || n >= len(members) {
			return errcode.Wrapf("api.RegisterCallback", errcode.Argument, fmt.Sprintf("index %d out of range", n))
		}
		w := workerOf(members[n])
		if w == nil {
			return errcode.Wrapf("api.RegisterCallback", errcode.NoWorker, "no worker")
		}
		w.RegisterCallback(cb)
		return nil
	})
}
