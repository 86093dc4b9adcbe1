// Package report provides the subscribe-by-execution-id stream of report
// snapshots published while a scenario executes.
//
// Each stream keeps only its latest snapshot. Subscribers receive that
// snapshot on subscription and every later one; a slow subscriber skips
// intermediate snapshots but always receives the terminal one, after which
// its channel is closed. Streams are removed when they terminate, so late
// subscribers must read persisted history instead.
//
// Import rules:
//   - CAN import: internal/domain, internal/errors, std lib
//   - MUST NOT import: internal/engine, internal/campaign, internal/cli
package report

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// Snapshot is one published state of an execution report.
type Snapshot struct {
	Report   domain.ExecutionReport
	Terminal bool
}

// Publisher is the producer side of the broker used by the engine.
type Publisher interface {
	Open(executionID int64)
	Publish(executionID int64, report domain.ExecutionReport)
	Close(executionID int64, report domain.ExecutionReport)
}

// Subscription receives the snapshots of one execution.
type Subscription struct {
	// C delivers snapshots. It is closed after the terminal snapshot or on
	// Unsubscribe.
	C <-chan Snapshot

	once        sync.Once
	unsubscribe func()
}

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}

type stream struct {
	last   *Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

// Broker fans snapshots out to subscribers.
// It is safe for concurrent use.
type Broker struct {
	mu      sync.Mutex
	streams map[int64]*stream
}

// Ensure Broker implements Publisher.
var _ Publisher = (*Broker)(nil)

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{streams: make(map[int64]*stream)}
}

// Open starts the stream of an execution. Opening an existing stream is a no-op.
func (b *Broker) Open(executionID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.streams[executionID]; !ok {
		b.streams[executionID] = &stream{subs: make(map[int]chan Snapshot)}
	}
}

// Publish records a non-terminal snapshot and offers it to subscribers.
// Publishing on a stream that was never opened or is already closed is a
// no-op, so a late progress tick cannot revive a finished stream.
func (b *Broker) Publish(executionID int64, report domain.ExecutionReport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[executionID]
	if !ok {
		return
	}
	snap := Snapshot{Report: report}
	st.last = &snap
	for _, ch := range st.subs {
		offer(ch, snap)
	}
}

// Close publishes the terminal snapshot, closes every subscription and
// removes the stream. Closing an unknown stream is a no-op.
func (b *Broker) Close(executionID int64, report domain.ExecutionReport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[executionID]
	if !ok {
		return
	}
	snap := Snapshot{Report: report, Terminal: true}
	for id, ch := range st.subs {
		offer(ch, snap)
		close(ch)
		delete(st.subs, id)
	}
	delete(b.streams, executionID)
}

// Subscribe returns a subscription to a live stream. The latest snapshot,
// if any, is delivered first.
// Returns ErrReportStreamNotFound if the stream is unknown or terminated.
func (b *Broker) Subscribe(executionID int64) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errors.ErrReportStreamNotFound, executionID)
	}

	ch := make(chan Snapshot, 1)
	if st.last != nil {
		ch <- *st.last
	}
	id := st.nextID
	st.nextID++
	st.subs[id] = ch

	return &Subscription{
		C: ch,
		unsubscribe: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := st.subs[id]; ok {
				delete(st.subs, id)
				close(c)
			}
		},
	}, nil
}

// Live returns the ids of open streams, sorted.
func (b *Broker) Live() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int64, 0, len(b.streams))
	for id := range b.streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// offer delivers snap, replacing an undelivered older snapshot.
// Callers hold the broker lock, so no other sender competes for ch.
func offer(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// NopPublisher discards every snapshot.
type NopPublisher struct{}

// Ensure NopPublisher implements Publisher.
var _ Publisher = NopPublisher{}

// Open implements Publisher.
func (NopPublisher) Open(int64) {}

// Publish implements Publisher.
func (NopPublisher) Publish(int64, domain.ExecutionReport) {}

// Close implements Publisher.
func (NopPublisher) Close(int64, domain.ExecutionReport) {}
