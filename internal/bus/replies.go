package bus

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// callKey identifies an incoming method call by its sender and serial.
type callKey struct {
	sender string
	serial uint32
}

// replyTracker follows every incoming method call until its reply has been
// written to the connection. godbus sends the reply on the goroutine that
// ran the handler, after the handler returned, so closing the connection as
// soon as a handler has finished can drop the reply. The tracker sees calls
// through the incoming interceptor, matches replies in the outgoing
// interceptor and learns that a reply was written when godbus retires its
// serial.
type replyTracker struct {
	mu   sync.Mutex
	next uint32
	used map[uint32]bool

	pending map[callKey]bool
	sending map[uint32]bool
	idle    chan struct{}
}

var _ dbus.SerialGenerator = (*replyTracker)(nil)

func newReplyTracker() *replyTracker {
	idle := make(chan struct{})
	close(idle)
	return &replyTracker{
		next:    1,
		used:    make(map[uint32]bool),
		pending: make(map[callKey]bool),
		sending: make(map[uint32]bool),
		idle:    idle,
	}
}

// GetSerial returns a serial that is not in use. Zero is never returned.
func (t *replyTracker) GetSerial() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.next == 0 || t.used[t.next] {
		t.next++
	}
	serial := t.next
	t.used[serial] = true
	t.next++
	return serial
}

// RetireSerial is called by godbus once the message carrying serial has been
// sent or has failed to send.
func (t *replyTracker) RetireSerial(serial uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.used, serial)
	if t.sending[serial] {
		delete(t.sending, serial)
		t.markIdle()
	}
}

func (t *replyTracker) incoming(msg *dbus.Message) {
	if msg.Type != dbus.TypeMethodCall || msg.Flags&dbus.FlagNoReplyExpected != 0 {
		return
	}
	sender, _ := msg.Headers[dbus.FieldSender].Value().(string)
	t.received(callKey{sender: sender, serial: msg.Serial()})
}

func (t *replyTracker) received(call callKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isIdle() {
		t.idle = make(chan struct{})
	}
	t.pending[call] = true
}

func (t *replyTracker) outgoing(msg *dbus.Message) {
	if msg.Type != dbus.TypeMethodReply && msg.Type != dbus.TypeError {
		return
	}
	dest, _ := msg.Headers[dbus.FieldDestination].Value().(string)
	replyTo, _ := msg.Headers[dbus.FieldReplySerial].Value().(uint32)
	t.replying(callKey{sender: dest, serial: replyTo}, msg.Serial())
}

// replying records that the reply to call is about to be sent with serial.
func (t *replyTracker) replying(call callKey, serial uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.pending[call] {
		return
	}
	delete(t.pending, call)
	t.sending[serial] = true
}

func (t *replyTracker) isIdle() bool {
	return len(t.pending) == 0 && len(t.sending) == 0
}

func (t *replyTracker) markIdle() {
	if t.isIdle() {
		close(t.idle)
	}
}

// wait blocks until every call received so far has been answered.
func (t *replyTracker) wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
