// Package abi computes how a C function signature is passed on a target:
// which arguments travel in registers, which on the stack and which behind a
// hidden reference. It is pure Go and knows nothing about how calls are made.
package abi

import (
	"fmt"
	"strings"

	"dffi/internal/layout"
	"dffi/internal/types"
)

// Class is the classification of one eightbyte (x86-64) or one register
// (AArch64).
type Class uint8

const (
	ClassNoClass Class = iota
	ClassInteger
	ClassSSE
	ClassSSEUp
	ClassX87
	ClassX87Up
	ClassComplexX87
	ClassMemory
)

var classNames = [...]string{
	ClassNoClass:    "NO_CLASS",
	ClassInteger:    "INTEGER",
	ClassSSE:        "SSE",
	ClassSSEUp:      "SSEUP",
	ClassX87:        "X87",
	ClassX87Up:      "X87UP",
	ClassComplexX87: "COMPLEX_X87",
	ClassMemory:     "MEMORY",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("Class(%d)", c)
}

// ArgKind says where a value travels.
type ArgKind uint8

const (
	// Direct values are passed in registers.
	Direct ArgKind = iota
	// Indirect values are copied by the caller and passed by address; for a
	// return value the caller supplies the buffer (sret).
	Indirect
	// Stack values are copied onto the stack.
	Stack
	// Ignore marks void results and empty records.
	Ignore
)

func (k ArgKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Indirect:
		return "indirect"
	case Stack:
		return "stack"
	case Ignore:
		return "ignore"
	default:
		return fmt.Sprintf("ArgKind(%d)", k)
	}
}

// ArgInfo is the classification of one parameter or of the result.
type ArgInfo struct {
	// Type is the type actually passed: arrays decayed, extras promoted.
	Type    types.QualType
	Kind    ArgKind
	Classes []Class
	Size    uint64
	Align   uint32
	// GPRs and FPRs count the registers consumed.
	GPRs, FPRs  int
	StackOffset uint64
	// Promoted is set on variadic extras whose type changed under the
	// default argument promotions.
	Promoted bool
	// HFABase and HFACount describe an AArch64 homogeneous floating-point
	// aggregate; HFACount is 0 otherwise.
	HFABase  types.BasicKind
	HFACount int
}

// Plan is the full classification of a call. Plans are immutable.
type Plan struct {
	Func      *types.FunctionType
	Target    layout.Target
	Conv      types.CallingConv
	Return    ArgInfo
	Params    []ArgInfo
	Extra     []ArgInfo
	SRet      bool
	StackSize uint64
	GPRsUsed  int
	FPRsUsed  int
}

// Args returns the fixed parameters followed by the variadic extras.
func (p *Plan) Args() []ArgInfo {
	if len(p.Extra) == 0 {
		return p.Params
	}
	out := make([]ArgInfo, 0, len(p.Params)+len(p.Extra))
	out = append(out, p.Params...)
	return append(out, p.Extra...)
}

func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] on %s\n", p.Func, p.Conv, p.Target)
	writeArg(&sb, "ret", &p.Return)
	for i := range p.Params {
		writeArg(&sb, fmt.Sprintf("arg%d", i), &p.Params[i])
	}
	for i := range p.Extra {
		writeArg(&sb, fmt.Sprintf("...%d", i), &p.Extra[i])
	}
	fmt.Fprintf(&sb, "  sret=%v stack=%d gprs=%d fprs=%d\n", p.SRet, p.StackSize, p.GPRsUsed, p.FPRsUsed)
	return sb.String()
}

func writeArg(sb *strings.Builder, label string, a *ArgInfo) {
	cls := make([]string, len(a.Classes))
	for i, c := range a.Classes {
		cls[i] = c.String()
	}
	fmt.Fprintf(sb, "  %-6s %-24s %-8s %-20s", label, a.Type, a.Kind, strings.Join(cls, ","))
	switch a.Kind {
	case Stack:
		fmt.Fprintf(sb, " @%d", a.StackOffset)
	case Direct, Indirect:
		fmt.Fprintf(sb, " gpr=%d fpr=%d", a.GPRs, a.FPRs)
	}
	if a.HFACount > 0 {
		fmt.Fprintf(sb, " hfa=%dx%s", a.HFACount, a.HFABase)
	}
	if a.Promoted {
		sb.WriteString(" promoted")
	}
	sb.WriteByte('\n')
}

// UnsupportedError reports a convention or type the classifier has no rule
// for on the target.
type UnsupportedError struct {
	Conv   types.CallingConv
	Target string
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Reason != "" {
		return fmt.Sprintf("calling convention %s on %s: %s", e.Conv, e.Target, e.Reason)
	}
	return fmt.Sprintf("calling convention %s is not supported on %s", e.Conv, e.Target)
}
