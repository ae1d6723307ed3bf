package trace

import (
	"fmt"
	"strings"
)

// Level controls how much of the runtime's activity is recorded.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff Level = iota
	// LevelError records only spans that failed, as a single end event.
	LevelError
	// LevelPhase records runtime setup and library loads.
	LevelPhase
	// LevelDetail adds function binding.
	LevelDetail
	// LevelDebug adds every native call.
	LevelDebug
)

var levelNames = [...]string{
	LevelOff:    "off",
	LevelError:  "error",
	LevelPhase:  "phase",
	LevelDetail: "detail",
	LevelDebug:  "debug",
}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel accepts the names printed by String, in any case.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(l), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether spans and points of scope are recorded in full.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelPhase:
		return scope <= ScopeLoad
	case LevelDetail:
		return scope <= ScopeBind
	case LevelDebug:
		return true
	}
	return false
}

// failuresOnly reports whether spans are kept only to report errors.
func (l Level) failuresOnly() bool { return l == LevelError }

// accepts reports whether a sink at this level keeps ev.
func (l Level) accepts(ev *Event) bool {
	switch {
	case ev.Kind == KindHeartbeat:
		return l > LevelOff
	case l.ShouldEmit(ev.Scope):
		return true
	case l.failuresOnly():
		return ev.Kind == KindSpanEnd && ev.Extra["error"] != ""
	}
	return false
}
