//go:build !(tinygo && baremetal)

package hal

import "time"

// hostTime publishes wall-clock milliseconds since the first step. Runners
// call step once per host frame; a reader that falls behind loses ticks, not
// time: the sequence number keeps counting.
type hostTime struct {
	ch    chan uint64
	start time.Time
	sent  uint64
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024)}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

func (t *hostTime) step() {
	now := time.Now()
	if t.start.IsZero() {
		t.start = now
	}
	elapsed := uint64(now.Sub(t.start) / time.Millisecond)
	for t.sent < elapsed {
		t.sent++
		select {
		case t.ch <- t.sent:
		default:
		}
	}
}
