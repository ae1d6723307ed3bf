package typedesc

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"dffi/internal/ffi"
	"dffi/internal/types"
	"dffi/internal/version"
)

// snapshotVersion is bumped whenever Snapshot changes shape.
const snapshotVersion uint16 = 1

// Snapshot is everything a runtime knows about its records, enums and a set
// of functions, with every layout spelled out. Anonymous records get
// synthetic names of the form __anonN.
type Snapshot struct {
	Version uint16 `json:"version" msgpack:"version"`
	Target  string `json:"target" msgpack:"target"`
	File    File   `json:"description" msgpack:"description"`
}

// Export captures the records and enums of rt and the functions of set,
// which may be nil.
func Export(rt *ffi.Runtime, set *Set) *Snapshot {
	names := func(co types.CanOpaqueType) string {
		if co.Name() != "" {
			return co.Name()
		}
		return "__anon" + strconv.FormatUint(uint64(co.ID()), 10)
	}
	snap := &Snapshot{
		Version: snapshotVersion,
		Target:  rt.Target().Triple,
		File:    File{Schema: version.DescFormat},
	}
	for _, t := range rt.Types() {
		switch tt := t.(type) {
		case *types.StructType:
			snap.File.Structs = append(snap.File.Structs, exportRecord(&tt.CompositeType, names(tt), names))
		case *types.UnionType:
			snap.File.Unions = append(snap.File.Unions, exportRecord(&tt.CompositeType, names(tt), names))
		case *types.EnumType:
			ed := EnumDesc{Name: names(tt), Opaque: tt.IsOpaque()}
			for _, c := range tt.Constants() {
				ed.Constants = append(ed.Constants, ConstantDesc{Name: c.Name, Value: c.Value})
			}
			snap.File.Enums = append(snap.File.Enums, ed)
		}
	}
	if set != nil {
		snap.File.Library.Path = set.Library
		for _, fn := range set.Functions {
			fd := FuncDesc{
				Name:     fn.Name,
				Variadic: fn.Type.IsVarArgs(),
				Params:   make([]string, fn.Type.NumParams()),
			}
			if fn.Symbol != fn.Name {
				fd.Symbol = fn.Symbol
			}
			if !fn.Type.Return().IsVoid() {
				fd.Return = spell(fn.Type.Return(), names)
			}
			for i, pt := range fn.Type.Params() {
				fd.Params[i] = spell(pt, names)
			}
			if cc := fn.Type.CallingConv(); cc != types.CCDefault {
				fd.Conv = cc.String()
			}
			snap.File.Functions = append(snap.File.Functions, fd)
		}
	}
	return snap
}

func exportRecord(ct *types.CompositeType, name string, names func(types.CanOpaqueType) string) RecordDesc {
	rd := RecordDesc{Name: name}
	if ct.IsOpaque() {
		rd.Opaque = true
		return rd
	}
	size := ct.Size()
	rd.Size = &size
	rd.Align = ct.Align()
	for _, f := range ct.Fields() {
		off := f.Offset()
		rd.Fields = append(rd.Fields, FieldDesc{Name: f.Name(), Type: spell(f.Type(), names), Offset: &off})
	}
	return rd
}

// Import applies a snapshot to rt. The snapshot must have been taken for
// the same target, since its layouts are fixed.
func Import(rt *ffi.Runtime, snap *Snapshot) (*Set, error) {
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	if snap.Target != rt.Target().Triple {
		return nil, fmt.Errorf("snapshot is for %s, runtime targets %s", snap.Target, rt.Target().Triple)
	}
	f := snap.File
	f.Name = "snapshot"
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return Apply(rt, &f)
}

// EncodeMsgpack writes the snapshot as msgpack.
func (s *Snapshot) EncodeMsgpack(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(s)
}

// EncodeJSON writes the snapshot as indented JSON.
func (s *Snapshot) EncodeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// DecodeSnapshot reads a snapshot written by EncodeMsgpack or EncodeJSON.
func DecodeSnapshot(r io.Reader, asJSON bool) (*Snapshot, error) {
	var s Snapshot
	var err error
	if asJSON {
		err = json.NewDecoder(r).Decode(&s)
	} else {
		err = msgpack.NewDecoder(r).Decode(&s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Save writes the snapshot to path, as JSON for a .json extension and
// msgpack otherwise. The file is replaced atomically.
func (s *Snapshot) Save(path string) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if isJSONPath(path) {
		err = s.EncodeJSON(f)
	} else {
		err = s.EncodeMsgpack(f)
	}
	if err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// LoadSnapshot reads a snapshot saved with Save.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeSnapshot(f, isJSONPath(path))
}
