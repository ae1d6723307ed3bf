package abi

import (
	"errors"
	"fmt"
	"strings"

	"dffi/internal/layout"
	"dffi/internal/types"
)

// Classifier computes and caches call plans for one target.
type Classifier struct {
	target layout.Target
	ctx    *types.Context
	cache  *planCache
}

// New creates a classifier for target. Types passed to it must belong to
// ctx.
func New(target layout.Target, ctx *types.Context) *Classifier {
	return &Classifier{
		target: target,
		ctx:    ctx,
		cache:  newPlanCache(),
	}
}

// Target returns the target the classifier was built for.
func (c *Classifier) Target() layout.Target { return c.target }

// Context returns the type authority the classifier draws types from.
func (c *Classifier) Context() *types.Context { return c.ctx }

// Classify returns the plan for the fixed parameters of ft.
func (c *Classifier) Classify(ft *types.FunctionType) (*Plan, error) {
	return c.classify(ft, nil)
}

// ClassifyVariadic returns the plan for a concrete call of a variadic ft
// whose extra arguments have the given types. The extras are promoted here.
func (c *Classifier) ClassifyVariadic(ft *types.FunctionType, extras []types.QualType) (*Plan, error) {
	if len(extras) > 0 && !ft.IsVarArgs() {
		return nil, fmt.Errorf("%s: %d extra arguments passed to a non-variadic function", ft, len(extras))
	}
	return c.classify(ft, extras)
}

func (c *Classifier) classify(ft *types.FunctionType, extras []types.QualType) (*Plan, error) {
	if ft == nil {
		return nil, errors.New("abi: nil function type")
	}
	key := cacheKey{fn: ft.ID(), extras: extrasKey(extras)}
	if p, ok := c.cache.get(key); ok {
		return p, nil
	}
	p, err := c.compute(ft, extras)
	if err != nil {
		return nil, err
	}
	return c.cache.put(key, p), nil
}

func (c *Classifier) compute(ft *types.FunctionType, extras []types.QualType) (*Plan, error) {
	conv := c.target.ResolveCC(ft.CallingConv())
	p := &Plan{
		Func:   ft,
		Target: c.target,
		Conv:   conv,
	}
	if err := c.prepare(p, ft, extras); err != nil {
		return nil, err
	}
	switch {
	case c.target.Arch == layout.ArchX86_64 && conv == types.CCX86_64SysV:
		classifySysV(p)
	case c.target.Arch == layout.ArchX86_64 && conv == types.CCWin64:
		classifyWin64(p)
	case c.target.Arch == layout.ArchAArch64 && conv == types.CCAArch64:
		classifyAAPCS64(p, c.target.OS == layout.OSDarwin)
	default:
		return nil, &UnsupportedError{Conv: conv, Target: c.target.Triple}
	}
	return p, nil
}

// prepare fills in the passed types and checks they can be passed at all.
func (c *Classifier) prepare(p *Plan, ft *types.FunctionType, extras []types.QualType) error {
	ret := ft.Return()
	if !ret.IsVoid() {
		switch ret.Type.Kind() {
		case types.KindArray, types.KindFunction:
			return fmt.Errorf("%s: functions cannot return %s", ft, ret)
		}
		if err := types.Complete(ret.Type); err != nil {
			return err
		}
	}
	p.Return = newArgInfo(ret)

	p.Params = make([]ArgInfo, ft.NumParams())
	for i, pt := range ft.Params() {
		if pt.IsVoid() {
			return fmt.Errorf("%s: parameter %d has type void", ft, i)
		}
		qt := adjustParam(c.ctx, pt)
		if err := types.Complete(qt.Type); err != nil {
			return fmt.Errorf("%s: parameter %d: %w", ft, i, err)
		}
		p.Params[i] = newArgInfo(qt)
	}

	if len(extras) > 0 {
		p.Extra = make([]ArgInfo, len(extras))
	}
	for i, et := range extras {
		if et.IsVoid() {
			return fmt.Errorf("%s: extra argument %d has type void", ft, i)
		}
		if et.Type.Kind() == types.KindFunction {
			return fmt.Errorf("%s: extra argument %d has function type %s", ft, i, et)
		}
		qt := Promote(c.ctx, adjustParam(c.ctx, et))
		if err := types.Complete(qt.Type); err != nil {
			return fmt.Errorf("%s: extra argument %d: %w", ft, i, err)
		}
		info := newArgInfo(qt)
		info.Promoted = qt.Type != et.Type
		p.Extra[i] = info
	}
	return nil
}

func newArgInfo(qt types.QualType) ArgInfo {
	info := ArgInfo{Type: qt, Align: 1}
	if qt.IsVoid() {
		info.Kind = Ignore
		return info
	}
	info.Size = qt.Size()
	info.Align = qt.Align()
	return info
}

func extrasKey(extras []types.QualType) string {
	if len(extras) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, e := range extras {
		fmt.Fprintf(&sb, "%d:%d,", e.ID(), e.Quals)
	}
	return sb.String()
}

func stackSlot(off uint64, size uint64, align uint32) (at, next uint64) {
	a := uint64(max(align, 8))
	at = (off + a - 1) &^ (a - 1)
	next = at + (size+7)&^7
	return at, next
}

func isFloatScalar(t types.Type) (types.BasicKind, bool) {
	bt, ok := types.AsBasic(t)
	if !ok || !bt.BasicKind().IsFloat() {
		return 0, false
	}
	return bt.BasicKind(), true
}
