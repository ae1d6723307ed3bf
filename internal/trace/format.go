package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Format represents the output format for trace events.
type Format uint8

const (
	FormatAuto    Format = iota // pick from the output path
	FormatText                  // human-readable text
	FormatNDJSON                // newline-delimited JSON
	FormatChrome                // chrome://tracing event array
	FormatMsgpack               // concatenated msgpack records
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	case "chrome":
		return FormatChrome, nil
	case "msgpack":
		return FormatMsgpack, nil
	default:
		return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson|chrome|msgpack)", s)
	}
}

// FormatFromPath guesses the format from a file extension; text is the
// fallback.
func FormatFromPath(path string) Format {
	switch {
	case strings.HasSuffix(path, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(path, ".json"):
		return FormatChrome
	case strings.HasSuffix(path, ".msgpack"), strings.HasSuffix(path, ".mpk"):
		return FormatMsgpack
	default:
		return FormatText
	}
}

var processStart = time.Now()

// FormatEvent formats an event according to the specified format.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	case FormatMsgpack:
		b, err := msgpack.Marshal(ev)
		if err != nil {
			return nil
		}
		return b
	default:
		return formatText(ev)
	}
}

type jsonEvent struct {
	Time     string            `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Scope    string            `json:"scope"`
	SpanID   uint64            `json:"span_id"`
	ParentID uint64            `json:"parent_id,omitempty"`
	GID      uint64            `json:"gid,omitempty"`
	Name     string            `json:"name"`
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	j := jsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		GID:      ev.GID,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	}
	data, _ := json.Marshal(j) //nolint:errchkjson
	return append(data, '\n')
}

type chromeEvent struct {
	Name  string            `json:"name"`
	Cat   string            `json:"cat"`
	Ph    string            `json:"ph"`
	TS    int64             `json:"ts"`
	PID   int               `json:"pid"`
	TID   uint64            `json:"tid"`
	Scope string            `json:"s,omitempty"`
	Args  map[string]string `json:"args,omitempty"`
}

func formatChrome(ev *Event) []byte {
	c := chromeEvent{
		Name: ev.Name,
		Cat:  ev.Scope.String(),
		TS:   ev.Time.Sub(processStart).Microseconds(),
		PID:  1,
		TID:  ev.GID,
		Args: ev.Extra,
	}
	switch ev.Kind {
	case KindSpanBegin:
		c.Ph = "B"
	case KindSpanEnd:
		c.Ph = "E"
	default:
		c.Ph = "i"
		c.Scope = "t"
	}
	if ev.Detail != "" {
		c.Args = maps.Clone(c.Args)
		if c.Args == nil {
			c.Args = make(map[string]string, 1)
		}
		c.Args["detail"] = ev.Detail
	}
	data, _ := json.Marshal(c) //nolint:errchkjson
	return data
}

// formatText renders "[elapsed] →/← name (detail) {k=v}".
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%9.3fms] ", float64(ev.Time.Sub(processStart).Microseconds())/1000)
	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	switch ev.Kind {
	case KindSpanBegin:
		sb.WriteString("→ ")
	case KindSpanEnd:
		sb.WriteString("← ")
	case KindPoint:
		sb.WriteString("• ")
	case KindHeartbeat:
		sb.WriteString("♡ ")
	}
	sb.WriteString(ev.Scope.String())
	sb.WriteByte(' ')
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(ev.Detail)
		sb.WriteString(")")
	}
	if len(ev.Extra) > 0 {
		sb.WriteString(" {")
		for i, k := range slices.Sorted(maps.Keys(ev.Extra)) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(ev.Extra[k])
		}
		sb.WriteString("}")
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

// ReadMsgpack decodes a stream written in FormatMsgpack.
func ReadMsgpack(r io.Reader) ([]Event, error) {
	dec := msgpack.NewDecoder(r)
	var out []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("trace: decode event %d: %w", len(out), err)
		}
		out = append(out, ev)
	}
}
