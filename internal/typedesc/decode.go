package typedesc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/unicode/norm"

	"dffi/internal/version"
)

var newestSchema = semver.MustParse(version.DescFormat)

// CheckSchema accepts schema versions within version.DescConstraint.
func CheckSchema(schema string) error {
	v, err := semver.NewVersion(schema)
	if err != nil {
		return fmt.Errorf("schema %q: %w", schema, err)
	}
	c, err := semver.NewConstraint(version.DescConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("schema %s is not supported (want %s, newest %s)", v, version.DescConstraint, newestSchema)
	}
	return nil
}

// DecodeFile reads and decodes the description at path.
func DecodeFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DescError{File: path, Err: err}
	}
	return Decode(path, data)
}

// Decode parses a TOML description. name is used in error messages.
// Unknown keys are rejected so typos do not silently change a layout.
func Decode(name string, data []byte) (*File, error) {
	var f File
	meta, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f)
	if err != nil {
		return nil, &DescError{File: name, Err: fmt.Errorf("failed to parse TOML: %w", err)}
	}
	if !meta.IsDefined("schema") {
		return nil, &DescError{File: name, Err: fmt.Errorf("missing schema")}
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &DescError{File: name, Err: fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))}
	}
	f.Name = name
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// normalize checks the schema and brings every identifier and spelling to
// NFC so equal names compare equal.
func (f *File) normalize() error {
	if err := CheckSchema(f.Schema); err != nil {
		return &DescError{File: f.Name, Err: err}
	}
	if lp := f.Library.Path; strings.ContainsRune(lp, '/') && !filepath.IsAbs(lp) && f.Name != "" {
		f.Library.Path = filepath.Join(filepath.Dir(f.Name), lp)
	}
	fail := func(item string, err error) error {
		return &DescError{File: f.Name, Item: item, Err: err}
	}
	records := func(kind string, list []RecordDesc) error {
		for i := range list {
			r := &list[i]
			name, err := NormalizeIdent(r.Name)
			if err != nil {
				return fail(fmt.Sprintf("%s #%d", kind, i+1), err)
			}
			r.Name = name
			for j := range r.Fields {
				fd := &r.Fields[j]
				fname, err := NormalizeIdent(fd.Name)
				if err != nil {
					return fail(fmt.Sprintf("%s %s field #%d", kind, name, j+1), err)
				}
				fd.Name = fname
				fd.Type = norm.NFC.String(fd.Type)
			}
		}
		return nil
	}
	if err := records("struct", f.Structs); err != nil {
		return err
	}
	if err := records("union", f.Unions); err != nil {
		return err
	}
	for i := range f.Enums {
		e := &f.Enums[i]
		name, err := NormalizeIdent(e.Name)
		if err != nil {
			return fail(fmt.Sprintf("enum #%d", i+1), err)
		}
		e.Name = name
		for j := range e.Constants {
			c, err := NormalizeIdent(e.Constants[j].Name)
			if err != nil {
				return fail("enum "+name, err)
			}
			e.Constants[j].Name = c
		}
	}
	for i := range f.Functions {
		fn := &f.Functions[i]
		name, err := NormalizeIdent(fn.Name)
		if err != nil {
			return fail(fmt.Sprintf("function #%d", i+1), err)
		}
		fn.Name = name
		fn.Symbol = norm.NFC.String(strings.TrimSpace(fn.Symbol))
		fn.Return = norm.NFC.String(fn.Return)
		for j := range fn.Params {
			fn.Params[j] = norm.NFC.String(fn.Params[j])
		}
	}
	return nil
}
