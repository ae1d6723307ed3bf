// Package observ times the steps of one dffi command for --timings.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase accumulates every run of one named step, such as "load" or "call".
type Phase struct {
	Name  string
	Runs  int
	Total time.Duration
	Max   time.Duration
	Err   string // error of the most recent failing run
}

// Timer collects phases in the order they first ran. It is safe for
// concurrent use, so watch-mode reloads can record from another goroutine.
type Timer struct {
	mu     sync.Mutex
	phases []*Phase
	byName map[string]*Phase
}

func NewTimer() *Timer { return &Timer{byName: make(map[string]*Phase)} }

// Record adds one run of name that took d and failed with err, if not nil.
func (t *Timer) Record(name string, d time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byName[name]
	if !ok {
		p = &Phase{Name: name}
		t.byName[name] = p
		t.phases = append(t.phases, p)
	}
	p.Runs++
	p.Total += d
	p.Max = max(p.Max, d)
	if err != nil {
		p.Err = err.Error()
	}
}

// Measure runs fn and records it under name. fn's error is returned as is.
func (t *Timer) Measure(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	t.Record(name, time.Since(start), err)
	return err
}

// Summary renders the report as the --timings table.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&sb, "  %-20s %7.2f ms", p.Name, p.TotalMS)
		if p.Runs > 1 {
			fmt.Fprintf(&sb, "  x%d, max %.2f ms", p.Runs, p.MaxMS)
		}
		if p.Err != "" {
			sb.WriteString("  // " + p.Err)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-20s %7.2f ms\n", "total", report.TotalMS)
	return sb.String()
}

// PhaseReport is the serializable form of a Phase.
type PhaseReport struct {
	Name    string  `json:"name" msgpack:"name"`
	Runs    int     `json:"runs" msgpack:"runs"`
	TotalMS float64 `json:"total_ms" msgpack:"total_ms"`
	MaxMS   float64 `json:"max_ms" msgpack:"max_ms"`
	Err     string  `json:"error,omitempty" msgpack:"error,omitempty"`
}

type Report struct {
	TotalMS float64       `json:"total_ms" msgpack:"total_ms"`
	Phases  []PhaseReport `json:"phases" msgpack:"phases"`
}

func (t *Timer) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.phases) == 0 {
		return Report{}
	}
	rep := Report{Phases: make([]PhaseReport, 0, len(t.phases))}
	var total time.Duration
	for _, p := range t.phases {
		total += p.Total
		rep.Phases = append(rep.Phases, PhaseReport{
			Name:    p.Name,
			Runs:    p.Runs,
			TotalMS: millis(p.Total),
			MaxMS:   millis(p.Max),
			Err:     p.Err,
		})
	}
	rep.TotalMS = millis(total)
	return rep
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
