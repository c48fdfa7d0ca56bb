// Package bus is the façade's internal event fan-out: board lifecycle and
// status notifications published by observer (observer/observer.go) reach
// any number of UI/log subscribers through hierarchical topics such as
// T("board", "status", tabIndex) (observer/topics.go).
//
// Delivery is non-blocking and best-effort (spec.md's observer callbacks must
// never stall a board worker): a full subscriber channel has its oldest
// queued message dropped to make room for the newest one rather than
// blocking the publisher. Subscriptions match by token-for-token comparison
// against a flat list rather than a trie — the handful of topics this
// library publishes (board added/removed/ignored/status/commandLog/
// configChanged/runCount) never justifies a descent tree, so each Publish
// walks the live subscriber list once and tests each pattern directly.
package bus

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

var defaultQLen = 3

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Token is one level of a Topic. Any comparable type works; T panics if a
// token isn't comparable (e.g. a slice or map).
type Token any

// Topic is an ordered path of Tokens, e.g. T("board", "status", 3).
type Topic []Token

// T builds a Topic, panicking early if any token can't be used as a map key.
func T(tokens ...Token) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int32, int64, uint, uint32, uint64, uintptr:
		default:
			_ = map[Token]struct{}{tok: {}}
		}
	}
	return Topic(tokens)
}

func topicKey(t Topic) string {
	var sb strings.Builder
	for i, tok := range t {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		fmt.Fprint(&sb, tok)
	}
	return sb.String()
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

// Message is one published event: a topic, an opaque payload, and (for
// request/reply) a reply destination.
type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
	ID       uint32
}

// CanReply reports whether Reply has somewhere to send a response.
func (m *Message) CanReply() bool { return len(m.ReplyTo) > 0 }

func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

// Subscription is a live match against a Topic pattern (which may contain
// wildcard tokens); Channel delivers matching Messages.
type Subscription struct {
	pattern Topic
	ch      chan *Message
	conn    *Connection
}

func (s *Subscription) Topic() Topic             { return s.pattern }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// matches reports whether a concrete topic satisfies a subscription pattern,
// honoring the bus's single-level ('+') and multi-level ('#') wildcards. '#'
// is only meaningful as the final pattern token, matching the remainder of
// the topic (including zero further tokens).
func (b *Bus) matches(pattern, topic Topic) bool {
	pi, ti := 0, 0
	for pi < len(pattern) {
		pt := pattern[pi]
		if pt == b.mWild {
			return true
		}
		if ti >= len(topic) {
			return false
		}
		if pt != b.sWild && pt != topic[ti] {
			return false
		}
		pi++
		ti++
	}
	return ti == len(topic)
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Options configures a Bus's default subscriber queue depth and wildcard
// tokens.
type Options struct {
	QueueLen       int
	SingleWildcard Token
	MultiWildcard  Token
}

// Bus is a process-local, in-memory publish/subscribe hub.
type Bus struct {
	mu       sync.Mutex
	subs     []*Subscription
	retained map[string]*Message
	qLen     int
	sWild    Token
	mWild    Token
	idCtr    atomic.Uint32
}

// NewBus returns a Bus using the conventional MQTT-style wildcards ('+' and
// '#') and the given per-subscriber channel depth.
func NewBus(queueLen int) *Bus {
	return NewBusWithOptions(Options{QueueLen: queueLen, SingleWildcard: "+", MultiWildcard: "#"})
}

func NewBusWithOptions(o Options) *Bus {
	if o.QueueLen <= 0 {
		o.QueueLen = defaultQLen
	}
	if o.SingleWildcard == nil {
		o.SingleWildcard = "+"
	}
	if o.MultiWildcard == nil {
		o.MultiWildcard = "#"
	}
	return &Bus{
		retained: make(map[string]*Message),
		qLen:     o.QueueLen,
		sWild:    o.SingleWildcard,
		mWild:    o.MultiWildcard,
	}
}

func (b *Bus) nextID() uint32 { return b.idCtr.Add(1) }

// NewMessage stamps a fresh ID onto a new Message.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{
		Topic:    topic,
		Payload:  payload,
		Retained: retained,
		ID:       b.nextID(),
	}
}

func (b *Bus) addSubscription(pattern Topic, sub *Subscription) {
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	var matched []*Message
	for _, rm := range b.retained {
		if b.matches(pattern, rm.Topic) {
			matched = append(matched, rm)
		}
	}
	b.mu.Unlock()

	for _, rm := range matched {
		b.tryDeliver(sub, rm)
	}
}

// Publish fans msg out to every live subscription whose pattern matches
// msg.Topic. A retained message (Retained set, Payload non-nil) replaces any
// prior retained value for that exact topic; publishing a retained message
// with a nil Payload clears it.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	var targets []*Subscription
	for _, sub := range b.subs {
		if b.matches(sub.pattern, msg.Topic) {
			targets = append(targets, sub)
		}
	}
	if msg.Retained {
		key := topicKey(msg.Topic)
		if msg.Payload == nil {
			delete(b.retained, key)
		} else {
			b.retained[key] = msg
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		b.tryDeliver(sub, msg)
	}
}

func trySend(ch chan *Message, m *Message) bool {
	select {
	case ch <- m:
		return true
	default:
		return false
	}
}

func drainOne(ch chan *Message) {
	select {
	case <-ch:
	default:
	}
}

// tryDeliver never blocks: a full channel loses its oldest message to make
// room, so a slow subscriber sees gaps instead of stalling the publisher.
func (b *Bus) tryDeliver(sub *Subscription, msg *Message) {
	defer func() { _ = recover() }() // channel may be closed concurrently
	if trySend(sub.ch, msg) {
		return
	}
	drainOne(sub.ch)
	_ = trySend(sub.ch, msg)
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection is a named publish/subscribe handle onto a Bus; observer holds
// one per façade instance (api/facade.go).
type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers pattern (which may use the bus's wildcard tokens) and
// returns a Subscription whose Channel delivers every matching Message,
// including any already-retained ones.
func (c *Connection) Subscribe(pattern Topic) *Subscription {
	sub := &Subscription{pattern: pattern, ch: make(chan *Message, c.bus.qLen), conn: c}
	c.bus.addSubscription(pattern, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub)
	c.mu.Lock()
	c.subs = removeSub(c.subs, sub)
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect unsubscribes every Subscription this Connection holds.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}

func removeSub(list []*Subscription, target *Subscription) []*Subscription {
	for i, s := range list {
		if s == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// -----------------------------------------------------------------------------
// Request-reply
// -----------------------------------------------------------------------------

// Request publishes msg (stamping a fresh single-token ReplyTo if it has
// none) and returns a Subscription on that reply topic for the caller to
// read asynchronously.
func (c *Connection) Request(msg *Message) *Subscription {
	if !msg.CanReply() {
		msg.ReplyTo = T(genID())
	}
	sub := c.Subscribe(msg.ReplyTo)
	c.Publish(msg)
	return sub
}

// RequestWait is Request followed by a blocking wait for the first reply or
// ctx's expiry, unsubscribing either way.
func (c *Connection) RequestWait(ctx context.Context, msg *Message) (*Message, error) {
	sub := c.Request(msg)
	defer c.Unsubscribe(sub)

	select {
	case m := <-sub.ch:
		if m == nil {
			return nil, errors.New("bus: reply subscription closed")
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reply publishes payload to the ReplyTo topic of a received request. A
// request with no ReplyTo (CanReply false) is silently ignored.
func (c *Connection) Reply(to *Message, payload any, retained bool) {
	if !to.CanReply() {
		return
	}
	c.Publish(&Message{Topic: to.ReplyTo, Payload: payload, Retained: retained, ID: c.bus.nextID()})
}
