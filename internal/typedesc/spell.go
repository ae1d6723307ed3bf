package typedesc

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"dffi/internal/types"
)

// Type spellings are postfix, the way types.Label prints them:
//
//	int32            const char*      uint8[16]
//	struct point*    int32 (int32, ...)*    double (double) [win64]
//
// A leading qualifier applies to the base type, a qualifier after '*'
// applies to that pointer.

var basicAliases = map[string]types.BasicKind{
	"int":         types.Int32,
	"unsigned":    types.UInt32,
	"uint":        types.UInt32,
	"short":       types.Int16,
	"ushort":      types.UInt16,
	"long":        types.Int64,
	"ulong":       types.UInt64,
	"longlong":    types.Int64,
	"ulonglong":   types.UInt64,
	"schar":       types.Int8,
	"uchar":       types.UInt8,
	"float":       types.Float32,
	"double":      types.Float64,
	"longdouble":  types.Float128,
	"size_t":      types.UInt64,
	"ssize_t":     types.Int64,
	"intptr_t":    types.Int64,
	"uintptr_t":   types.UInt64,
	"int8_t":      types.Int8,
	"int16_t":     types.Int16,
	"int32_t":     types.Int32,
	"int64_t":     types.Int64,
	"uint8_t":     types.UInt8,
	"uint16_t":    types.UInt16,
	"uint32_t":    types.UInt32,
	"uint64_t":    types.UInt64,
	"complex64":   types.ComplexFloat32,
	"complex128":  types.ComplexFloat64,
	"complex256":  types.ComplexFloat128,
	"_Bool":       types.Bool,
	"__int128":    types.Int128,
	"__uint128":   types.UInt128,
	"__float128":  types.Float128,
	"long_double": types.Float128,
}

// lookupBasic resolves a basic kind name or alias. Size-dependent aliases
// follow the data model's pointer size.
func lookupBasic(name string, model types.DataModel) (types.BasicKind, bool) {
	if k, ok := types.ParseBasicKind(name); ok {
		return k, true
	}
	k, ok := basicAliases[name]
	if !ok {
		return 0, false
	}
	if model.PtrSize == 4 {
		switch name {
		case "long", "ssize_t", "intptr_t":
			return types.Int32, true
		case "ulong", "size_t", "uintptr_t":
			return types.UInt32, true
		}
	}
	return k, true
}

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokPunct // * [ ] ( ) ,
	tokEllipsis
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		r, w := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			i += w
		case strings.HasPrefix(s[i:], "..."):
			toks = append(toks, token{tokEllipsis, "...", i})
			i += 3
		case strings.ContainsRune("*[](),", r):
			toks = append(toks, token{tokPunct, string(r), i})
			i += w
		case unicode.IsDigit(r):
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == 'x' || s[j] == 'X' || isHex(s[j])) {
				j++
			}
			toks = append(toks, token{tokNumber, s[i:j], i})
			i = j
		case r == '_' || unicode.IsLetter(r):
			j := i + w
			for j < len(s) {
				r2, w2 := utf8.DecodeRuneInString(s[j:])
				if r2 != '_' && !unicode.IsLetter(r2) && !unicode.IsDigit(r2) {
					break
				}
				j += w2
			}
			toks = append(toks, token{tokIdent, s[i:j], i})
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", r, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

func isHex(b byte) bool {
	return b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F'
}

// tagResolver finds or declares a tagged type by name.
type tagResolver func(kind types.TypeKind, name string) (types.Type, error)

type parser struct {
	src  string
	toks []token
	pos  int
	ctx  *types.Context
	tags tagResolver
}

// ParseType resolves a spelling against ctx. Tags that are not declared yet
// are declared as opaque types, as a C mention of `struct foo` does.
func ParseType(ctx *types.Context, spelling string) (types.QualType, error) {
	return parseSpelling(ctx, spelling, declareTag(ctx))
}

func declareTag(ctx *types.Context) tagResolver {
	return func(kind types.TypeKind, name string) (types.Type, error) {
		switch kind {
		case types.KindStruct:
			return ctx.DeclareStruct(name)
		case types.KindUnion:
			return ctx.DeclareUnion(name)
		default:
			return ctx.DeclareEnum(name)
		}
	}
}

func parseSpelling(ctx *types.Context, spelling string, tags tagResolver) (types.QualType, error) {
	toks, err := tokenize(spelling)
	if err != nil {
		return types.QualType{}, fmt.Errorf("type %q: %w", spelling, err)
	}
	p := &parser{src: spelling, toks: toks, ctx: ctx, tags: tags}
	qt, err := p.parseType()
	if err != nil {
		return types.QualType{}, fmt.Errorf("type %q: %w", spelling, err)
	}
	if t := p.peek(); t.kind != tokEOF {
		return types.QualType{}, fmt.Errorf("type %q: unexpected %q at offset %d", spelling, t.text, t.pos)
	}
	return qt, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); (t.kind == tokPunct || t.kind == tokIdent) && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		t := p.peek()
		if t.kind == tokEOF {
			return fmt.Errorf("expected %q at end", text)
		}
		return fmt.Errorf("expected %q, found %q at offset %d", text, t.text, t.pos)
	}
	return nil
}

func (p *parser) quals() types.Qualifiers {
	var q types.Qualifiers
	for {
		switch {
		case p.accept("const"):
			q |= types.QualConst
		case p.accept("volatile"):
			q |= types.QualVolatile
		case p.accept("restrict"):
			q |= types.QualRestrict
		default:
			return q
		}
	}
}

func (p *parser) parseType() (types.QualType, error) {
	q := p.quals()
	base, err := p.parseBase()
	if err != nil {
		return types.QualType{}, err
	}
	base.Quals |= q
	return p.parseSuffixes(base)
}

func (p *parser) parseBase() (types.QualType, error) {
	t := p.next()
	if t.kind != tokIdent {
		if t.kind == tokEOF {
			return types.QualType{}, fmt.Errorf("missing type")
		}
		return types.QualType{}, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
	switch t.text {
	case "void":
		return types.Void, nil
	case "struct", "union", "enum":
		name := p.next()
		if name.kind != tokIdent {
			return types.QualType{}, fmt.Errorf("%s needs a tag name", t.text)
		}
		kind := map[string]types.TypeKind{"struct": types.KindStruct, "union": types.KindUnion, "enum": types.KindEnum}[t.text]
		tt, err := p.tags(kind, name.text)
		if err != nil {
			return types.QualType{}, err
		}
		return types.Q(tt), nil
	case "long":
		switch {
		case p.accept("double"):
			return types.Q(p.ctx.BasicType(types.Float128)), nil
		case p.accept("long"), p.accept("int"):
		}
	case "unsigned", "signed":
		// "unsigned char", "signed int" and friends.
		if n := p.peek(); n.kind == tokIdent {
			if k, ok := signedWord(t.text, n.text); ok {
				p.pos++
				return types.Q(p.ctx.BasicType(k)), nil
			}
		}
		if t.text == "unsigned" {
			return types.Q(p.ctx.BasicType(types.UInt32)), nil
		}
		return types.Q(p.ctx.BasicType(types.Int32)), nil
	}
	k, ok := lookupBasic(t.text, p.ctx.DataModel())
	if !ok {
		return types.QualType{}, fmt.Errorf("unknown type name %q", t.text)
	}
	return types.Q(p.ctx.BasicType(k)), nil
}

func signedWord(sign, word string) (types.BasicKind, bool) {
	unsigned := sign == "unsigned"
	pick := func(s, u types.BasicKind) (types.BasicKind, bool) {
		if unsigned {
			return u, true
		}
		return s, true
	}
	switch word {
	case "char":
		return pick(types.Int8, types.UInt8)
	case "short":
		return pick(types.Int16, types.UInt16)
	case "int":
		return pick(types.Int32, types.UInt32)
	case "long":
		return pick(types.Int64, types.UInt64)
	}
	return 0, false
}

func (p *parser) parseSuffixes(cur types.QualType) (types.QualType, error) {
	for {
		switch {
		case p.accept("*"):
			cur = types.QualType{Type: p.ctx.PointerType(cur), Quals: p.quals()}
		case p.peek().text == "[" && p.toks[p.pos+1].kind == tokNumber:
			p.pos++
			n, err := strconv.ParseUint(p.next().text, 0, 64)
			if err != nil {
				return types.QualType{}, fmt.Errorf("array length: %w", err)
			}
			if err := p.expect("]"); err != nil {
				return types.QualType{}, err
			}
			at, err := p.ctx.ArrayType(cur, n)
			if err != nil {
				return types.QualType{}, err
			}
			cur = types.Q(at)
		case p.accept("("):
			ft, err := p.parseFunc(cur)
			if err != nil {
				return types.QualType{}, err
			}
			cur = types.Q(ft)
		default:
			return cur, nil
		}
	}
}

func (p *parser) parseFunc(ret types.QualType) (*types.FunctionType, error) {
	var params []types.QualType
	variadic := false
	if !p.accept(")") {
		for {
			if p.peek().kind == tokEllipsis {
				p.pos++
				variadic = true
				if err := p.expect(")"); err != nil {
					return nil, err
				}
				break
			}
			pt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			params = append(params, pt)
			if p.accept(")") {
				break
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	// C spells a parameterless function "(void)".
	if len(params) == 1 && params[0].IsVoid() && params[0].Quals == 0 && !variadic {
		params = nil
	}
	cc := types.CCDefault
	if p.peek().text == "[" && p.toks[p.pos+1].kind == tokIdent {
		p.pos++
		var err error
		if cc, err = types.ParseCallingConv(p.next().text); err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
	}
	for _, pt := range params {
		if pt.IsVoid() {
			return nil, fmt.Errorf("void parameter")
		}
	}
	return p.ctx.FunctionType(ret, params, cc, variadic), nil
}

// spell renders q so that parseSpelling reads it back. Anonymous tags are
// given the names chosen by tagName.
func spell(q types.QualType, tagName func(types.CanOpaqueType) string) string {
	var sb strings.Builder
	writeSpelling(&sb, q, tagName)
	return sb.String()
}

func writeSpelling(sb *strings.Builder, q types.QualType, tagName func(types.CanOpaqueType) string) {
	switch t := q.Type.(type) {
	case nil:
		if q.Quals != 0 {
			sb.WriteString(q.Quals.String() + " ")
		}
		sb.WriteString("void")
	case *types.PointerType:
		writeSpelling(sb, t.Pointee(), tagName)
		sb.WriteByte('*')
		if q.Quals != 0 {
			sb.WriteString(" " + q.Quals.String())
		}
	case *types.ArrayType:
		writeSpelling(sb, t.Elem(), tagName)
		fmt.Fprintf(sb, "[%d]", t.Len())
	case *types.FunctionType:
		writeSpelling(sb, t.Return(), tagName)
		sb.WriteString(" (")
		for i, pt := range t.Params() {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeSpelling(sb, pt, tagName)
		}
		if t.IsVarArgs() {
			if t.NumParams() > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...")
		}
		sb.WriteByte(')')
		if t.CallingConv() != types.CCDefault {
			sb.WriteString(" [" + t.CallingConv().String() + "]")
		}
	default:
		if q.Quals != 0 {
			sb.WriteString(q.Quals.String() + " ")
		}
		if co, ok := types.AsCanOpaque(q.Type); ok {
			sb.WriteString(co.Kind().String() + " " + tagName(co))
			return
		}
		sb.WriteString(q.Type.String())
	}
}
