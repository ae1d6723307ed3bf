package abi

import (
	"dffi/internal/types"
)

// Promote applies the C default argument promotions: small integers, bool
// and enums become int32 and float32 becomes float64. Other types are
// returned unchanged. Qualifiers are dropped from promoted types.
func Promote(ctx *types.Context, qt types.QualType) types.QualType {
	if qt.IsVoid() {
		return qt
	}
	if _, ok := types.AsEnum(qt.Type); ok {
		return types.Q(ctx.BasicType(types.Int32))
	}
	bt, ok := types.AsBasic(qt.Type)
	if !ok {
		return qt
	}
	switch bt.BasicKind() {
	case types.Bool, types.Char, types.Int8, types.Int16, types.UInt8, types.UInt16:
		return types.Q(ctx.BasicType(types.Int32))
	case types.Float32:
		return types.Q(ctx.BasicType(types.Float64))
	default:
		return qt
	}
}

// adjustParam applies the C parameter type adjustments: arrays decay to a
// pointer to their element and functions to a pointer to the function.
func adjustParam(ctx *types.Context, qt types.QualType) types.QualType {
	if qt.IsVoid() {
		return qt
	}
	if at, ok := types.AsArray(qt.Type); ok {
		return types.Q(ctx.PointerType(at.Elem()))
	}
	if _, ok := types.AsFunction(qt.Type); ok {
		return types.Q(ctx.PointerType(types.Q(qt.Type)))
	}
	return qt
}
