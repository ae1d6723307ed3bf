package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits a liveness event every interval. Each event reports how
// many native calls are still open, so a call that hangs shows up as
// heartbeats with a non-zero count and no matching call end.
type Heartbeat struct {
	tracer Tracer
	done   chan struct{}
	exited chan struct{}
	stop   sync.Once
}

// StartHeartbeat starts the heartbeat goroutine. It returns nil, which Stop
// accepts, when t is disabled or interval is not positive.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer: t,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go h.loop(interval)
	return h
}

func (h *Heartbeat) loop(interval time.Duration) {
	defer close(h.exited)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	gid := goid()
	for n := 1; ; n++ {
		select {
		case <-h.done:
			return
		case now := <-tick.C:
			h.tracer.Emit(&Event{
				Time:   now,
				Seq:    NextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeRuntime,
				GID:    gid,
				Name:   "heartbeat",
				Detail: "#" + strconv.Itoa(n),
				Extra:  map[string]string{"calls_in_flight": strconv.FormatInt(InFlightCalls(), 10)},
			})
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine to exit.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.stop.Do(func() { close(h.done) })
	<-h.exited
}
