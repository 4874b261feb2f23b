package runner

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Subscription is a caller-owned liveness token for output delivery.
// Once cancelled, deliveries are silently dropped.
type Subscription struct {
	live    atomic.Bool
	deliver func(transcript string)
}

// NewSubscription creates a live subscription that hands every delivered
// transcript to deliver. A nil deliver is allowed and discards output.
func NewSubscription(deliver func(transcript string)) *Subscription {
	s := &Subscription{deliver: deliver}
	s.live.Store(true)
	return s
}

// Cancel marks the subscription dead. It is safe to call more than once
// and from any goroutine.
func (s *Subscription) Cancel() {
	s.live.Store(false)
}

// Live reports whether the subscription still accepts deliveries.
func (s *Subscription) Live() bool {
	return s != nil && s.live.Load()
}

// OutputSink is the append-only transcript of one run. Every append
// delivers the full transcript so far to the subscription, if it is
// still live.
type OutputSink struct {
	mu  sync.Mutex
	buf strings.Builder
	sub *Subscription
}

// NewOutputSink creates an empty sink delivering to sub. sub may be nil.
func NewOutputSink(sub *Subscription) *OutputSink {
	return &OutputSink{sub: sub}
}

// Append adds a fragment and delivers the whole transcript. It reports
// whether a delivery happened.
func (o *OutputSink) Append(fragment string) bool {
	o.mu.Lock()
	o.buf.WriteString(fragment)
	transcript := o.buf.String()
	// Delivery stays under the lock so deliveries are observed in append order.
	defer o.mu.Unlock()

	if !o.sub.Live() || o.sub.deliver == nil {
		return false
	}
	o.sub.deliver(transcript)
	return true
}

// Transcript returns everything appended so far.
func (o *OutputSink) Transcript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}
