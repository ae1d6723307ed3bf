package types //nolint:revive

import (
	"fmt"
	"strings"
)

// CallingConv selects the rule set used to pass arguments and results.
type CallingConv uint8

const (
	// CCDefault is the target's native C convention.
	CCDefault CallingConv = iota
	CCX86_64SysV
	CCWin64
	CCAArch64
	CCX86StdCall
	CCX86FastCall
	CCX86ThisCall
)

var ccNames = []string{
	CCDefault:     "default",
	CCX86_64SysV:  "x86_64_sysv",
	CCWin64:       "win64",
	CCAArch64:     "aarch64",
	CCX86StdCall:  "x86_stdcall",
	CCX86FastCall: "x86_fastcall",
	CCX86ThisCall: "x86_thiscall",
}

func (cc CallingConv) String() string {
	if int(cc) < len(ccNames) {
		return ccNames[cc]
	}
	return fmt.Sprintf("CallingConv(%d)", cc)
}

// ParseCallingConv maps a spelling produced by CallingConv.String back to a
// convention. The empty string and "c" mean CCDefault.
func ParseCallingConv(s string) (CallingConv, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c":
		return CCDefault, nil
	}
	for cc, name := range ccNames {
		if strings.EqualFold(name, s) {
			return CallingConv(cc), nil
		}
	}
	return CCDefault, fmt.Errorf("unknown calling convention %q", s)
}

// FunctionType is a function signature. It does not perform calls; the
// native package binds it to a code address.
type FunctionType struct {
	base
	ret      QualType
	params   []QualType
	cc       CallingConv
	variadic bool
}

// Return returns the result type; a void result has a nil Type.
func (t *FunctionType) Return() QualType { return t.ret }

// Params returns the fixed parameter types. The returned slice must not be
// modified.
func (t *FunctionType) Params() []QualType { return t.params }

// NumParams returns the number of fixed parameters.
func (t *FunctionType) NumParams() int { return len(t.params) }

// CallingConv returns the declared calling convention.
func (t *FunctionType) CallingConv() CallingConv { return t.cc }

// IsVarArgs reports whether extra arguments follow the fixed ones.
func (t *FunctionType) IsVarArgs() bool { return t.variadic }

// Size is 0: functions are not objects.
func (t *FunctionType) Size() uint64 { return 0 }

// Align is 0: functions are not objects.
func (t *FunctionType) Align() uint32 { return 0 }

func (t *FunctionType) String() string { return Label(t) }

// fnKey renders the full signature tuple from type identities.
func fnKey(ret QualType, params []QualType, cc CallingConv, variadic bool) string {
	var sb strings.Builder
	writeQual := func(q QualType) {
		fmt.Fprintf(&sb, "%d:%d", q.ID(), q.Quals)
	}
	writeQual(ret)
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeQual(p)
	}
	if variadic {
		sb.WriteString(",...")
	}
	fmt.Fprintf(&sb, ")cc%d", cc)
	return sb.String()
}
