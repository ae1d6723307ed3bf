// Package typedesc reads C type and function descriptions from TOML and
// applies them to a runtime, and saves what a runtime knows as a snapshot.
//
// A description looks like:
//
//	schema = "1.0"
//
//	[library]
//	path = "libm.so.6"
//
//	[[struct]]
//	name = "point"
//	  [[struct.field]]
//	  name = "x"
//	  type = "int32"
//
//	[[function]]
//	name = "cos"
//	return = "double"
//	params = ["double"]
package typedesc

// File is one decoded description.
type File struct {
	Name      string       `toml:"-" json:"-" msgpack:"-"`
	Schema    string       `toml:"schema" json:"schema" msgpack:"schema"`
	Library   LibraryDesc  `toml:"library" json:"library" msgpack:"library"`
	Structs   []RecordDesc `toml:"struct" json:"struct,omitempty" msgpack:"struct,omitempty"`
	Unions    []RecordDesc `toml:"union" json:"union,omitempty" msgpack:"union,omitempty"`
	Enums     []EnumDesc   `toml:"enum" json:"enum,omitempty" msgpack:"enum,omitempty"`
	Functions []FuncDesc   `toml:"function" json:"function,omitempty" msgpack:"function,omitempty"`
}

// LibraryDesc names the shared object the functions live in.
type LibraryDesc struct {
	Path string `toml:"path" json:"path,omitempty" msgpack:"path,omitempty"`
}

// RecordDesc describes a struct or union. When every field carries an
// offset the layout is taken as given; otherwise it is computed with the C
// rules and Packed/Align apply.
type RecordDesc struct {
	Name   string      `toml:"name" json:"name" msgpack:"name"`
	Opaque bool        `toml:"opaque" json:"opaque,omitempty" msgpack:"opaque,omitempty"`
	Packed bool        `toml:"packed" json:"packed,omitempty" msgpack:"packed,omitempty"`
	Align  uint32      `toml:"align" json:"align,omitempty" msgpack:"align,omitempty"`
	Size   *uint64     `toml:"size" json:"size,omitempty" msgpack:"size,omitempty"`
	Fields []FieldDesc `toml:"field" json:"field,omitempty" msgpack:"field,omitempty"`
}

// FieldDesc is one member of a record.
type FieldDesc struct {
	Name   string  `toml:"name" json:"name" msgpack:"name"`
	Type   string  `toml:"type" json:"type" msgpack:"type"`
	Align  uint32  `toml:"align" json:"align,omitempty" msgpack:"align,omitempty"`
	Offset *uint64 `toml:"offset" json:"offset,omitempty" msgpack:"offset,omitempty"`
}

// EnumDesc describes an enum; an enum without constants stays opaque.
type EnumDesc struct {
	Name      string         `toml:"name" json:"name" msgpack:"name"`
	Opaque    bool           `toml:"opaque" json:"opaque,omitempty" msgpack:"opaque,omitempty"`
	Constants []ConstantDesc `toml:"constant" json:"constant,omitempty" msgpack:"constant,omitempty"`
}

// ConstantDesc is one enumerator.
type ConstantDesc struct {
	Name  string `toml:"name" json:"name" msgpack:"name"`
	Value int64  `toml:"value" json:"value" msgpack:"value"`
}

// FuncDesc describes a function signature and the symbol it is found under.
type FuncDesc struct {
	Name     string   `toml:"name" json:"name" msgpack:"name"`
	Symbol   string   `toml:"symbol" json:"symbol,omitempty" msgpack:"symbol,omitempty"`
	Return   string   `toml:"return" json:"return,omitempty" msgpack:"return,omitempty"`
	Params   []string `toml:"params" json:"params,omitempty" msgpack:"params,omitempty"`
	Variadic bool     `toml:"variadic" json:"variadic,omitempty" msgpack:"variadic,omitempty"`
	Conv     string   `toml:"conv" json:"conv,omitempty" msgpack:"conv,omitempty"`
}

// SymbolName returns Symbol, or Name when no symbol is given.
func (f *FuncDesc) SymbolName() string {
	if f.Symbol != "" {
		return f.Symbol
	}
	return f.Name
}

func (r *RecordDesc) explicitOffsets() bool {
	if len(r.Fields) == 0 {
		return r.Size != nil
	}
	for i := range r.Fields {
		if r.Fields[i].Offset == nil {
			return false
		}
	}
	return true
}
