// Package subscription implements the Subscription component (spec §4.6):
// an ordered replay from the durable log followed by a live tail of the
// Event Bus's broadcast ring, with synthesized gap events whenever
// retained history doesn't cover the requested range.
package subscription

import (
	"context"
	"strings"
	"sync"

	"github.com/kissvdb/kissvdb/internal/event"
	"github.com/kissvdb/kissvdb/internal/metrics"
)

// Bus is the subset of eventbus.Bus a Subscription needs.
type Bus interface {
	ReadFrom(from event.Offset, limit int) ([]event.Event, error)
	RingGet(offset event.Offset) (event.Event, bool)
	LatestOffset() (event.Offset, bool)
	OldestRingOffset() (event.Offset, bool)
	WaitForAtLeast(target event.Offset, stop <-chan struct{})
}

// Filter narrows which events Next returns. A zero Filter matches
// everything. gap events always bypass every field (spec §4.6: "gap is
// never filtered").
type Filter struct {
	Kinds      map[event.Kind]struct{}
	KeyPrefix  string
	Collection string
}

func (f Filter) match(ev event.Event) bool {
	if ev.IsGap() {
		return true
	}
	if len(f.Kinds) > 0 {
		if _, ok := f.Kinds[ev.Kind]; !ok {
			return false
		}
	}
	if f.KeyPrefix != "" {
		if ev.Key == "" || !strings.HasPrefix(ev.Key, f.KeyPrefix) {
			return false
		}
	}
	if f.Collection != "" && ev.Collection != f.Collection {
		return false
	}
	return true
}

// Subscription is a single consumer's cursor over the event stream.
type Subscription struct {
	bus    Bus
	filter Filter
	next   event.Offset

	closeOnce sync.Once
}

// New creates a Subscription that will next deliver the event at offset
// since (i.e. since=0 starts from the very first event). Callers should
// Close the Subscription once they stop calling Next.
func New(bus Bus, since event.Offset, filter Filter) *Subscription {
	metrics.Get().EventBusSubscribersOpen.Inc()
	return &Subscription{bus: bus, filter: filter, next: since}
}

// Close marks this Subscription as no longer tailing the stream. Safe to
// call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		metrics.Get().EventBusSubscribersOpen.Dec()
	})
}

// Next blocks until the next event matching the filter is available, a
// gap is synthesized, or ctx is done.
func (s *Subscription) Next(ctx context.Context) (event.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return event.Event{}, err
		}

		evs, err := s.bus.ReadFrom(s.next, 1)
		if err != nil {
			return event.Event{}, err
		}
		if len(evs) > 0 {
			ev := evs[0]
			if ev.Offset <= s.next {
				s.next = ev.Offset + 1
				if s.filter.match(ev) {
					return ev, nil
				}
				continue
			}
			// The log no longer holds s.next..ev.Offset-1 (pruned); unless
			// the live ring still has s.next, that range is a gap.
			if _, inRing := s.bus.RingGet(s.next); !inRing {
				gap := event.Event{
					Kind:       event.KindGap,
					FromOffset: s.next,
					ToOffset:   ev.Offset - 1,
					Dropped:    uint64(ev.Offset - s.next),
				}
				s.next = ev.Offset
				return gap, nil
			}
		}

		if ev, ok := s.bus.RingGet(s.next); ok {
			s.next = ev.Offset + 1
			if s.filter.match(ev) {
				return ev, nil
			}
			continue
		}

		latest, hasLatest := s.bus.LatestOffset()
		if hasLatest && s.next <= latest {
			// Something was published at or after s.next, but neither
			// the durable log nor the live ring has it: it was pruned
			// out from under this subscriber (spec §4.6 gap synthesis).
			oldestRing, hasOldest := s.bus.OldestRingOffset()
			if hasOldest && oldestRing > s.next {
				gap := event.Event{
					Kind:       event.KindGap,
					FromOffset: s.next,
					ToOffset:   oldestRing - 1,
					Dropped:    uint64(oldestRing - s.next),
				}
				s.next = oldestRing
				return gap, nil
			}
		}

		s.bus.WaitForAtLeast(s.next, ctx.Done())
	}
}
