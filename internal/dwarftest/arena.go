// Package dwarftest builds synthetic DIE graphs for tests, standing in for
// a real binary behind the index source boundary.
package dwarftest

import (
	"debug/dwarf"

	"github.com/pkg/errors"

	"github.com/consoledbg/dwarfclass/elf"
)

type Arena struct {
	cus      []elf.CompilationUnit
	order    map[dwarf.Offset][]dwarf.Offset
	entries  map[dwarf.Offset]*dwarf.Entry
	children map[dwarf.Offset][]dwarf.Offset
	files    map[dwarf.Offset][]*dwarf.LineFile
	owner    map[dwarf.Offset]dwarf.Offset

	current dwarf.Offset

	// Fetches counts EntryAt calls, so tests can observe cache behavior.
	Fetches int
}

func NewArena() *Arena {
	return &Arena{
		order:    map[dwarf.Offset][]dwarf.Offset{},
		entries:  map[dwarf.Offset]*dwarf.Entry{},
		children: map[dwarf.Offset][]dwarf.Offset{},
		files:    map[dwarf.Offset][]*dwarf.LineFile{},
		owner:    map[dwarf.Offset]dwarf.Offset{},
	}
}

// NewCU opens a unit; entries added afterwards belong to it until the next
// NewCU. Offsets across units must be distinct, like in a real section.
func (a *Arena) NewCU(off dwarf.Offset, name string) elf.CompilationUnit {
	if len(a.cus) > 0 {
		a.cus[len(a.cus)-1].NextOffset = off
	}
	cu := elf.CompilationUnit{
		Offset:      off,
		DIEOffset:   off + 11,
		NextOffset:  off + 1<<20,
		Name:        name,
		Version:     4,
		AddressSize: 8,
	}
	a.cus = append(a.cus, cu)
	a.current = off
	return cu
}

// AddEntry registers a DIE. parent 0 puts it at unit top level.
func (a *Arena) AddEntry(off, parent dwarf.Offset, tag dwarf.Tag, fields ...dwarf.Field) *dwarf.Entry {
	entry := &dwarf.Entry{Offset: off, Tag: tag, Field: fields}
	a.entries[off] = entry
	a.order[a.current] = append(a.order[a.current], off)
	a.owner[off] = a.current
	if parent != 0 {
		a.children[parent] = append(a.children[parent], off)
		if p, ok := a.entries[parent]; ok {
			p.Children = true
		}
	}
	return entry
}

// SetFileTable installs a 1-based decl_file table for the unit at cuOff.
func (a *Arena) SetFileTable(cuOff dwarf.Offset, names ...string) {
	files := []*dwarf.LineFile{nil}
	for _, name := range names {
		files = append(files, &dwarf.LineFile{Name: name})
	}
	a.files[cuOff] = files
}

func (a *Arena) IterCompilationUnits() ([]elf.CompilationUnit, error) {
	return a.cus, nil
}

func (a *Arena) EntriesInCU(cu elf.CompilationUnit) <-chan *dwarf.Entry {
	ch := make(chan *dwarf.Entry)
	go func() {
		defer close(ch)
		for _, off := range a.order[cu.Offset] {
			ch <- a.entries[off]
		}
	}()
	return ch
}

func (a *Arena) EntryAt(off dwarf.Offset) (*dwarf.Entry, error) {
	a.Fetches++
	entry, ok := a.entries[off]
	if !ok {
		return nil, errors.Wrapf(elf.EntryNotFoundError, "offset 0x%x", off)
	}
	return entry, nil
}

func (a *Arena) ChildrenOf(off dwarf.Offset) ([]*dwarf.Entry, error) {
	if _, ok := a.entries[off]; !ok {
		return nil, errors.Wrapf(elf.EntryNotFoundError, "offset 0x%x", off)
	}
	children := make([]*dwarf.Entry, 0, len(a.children[off]))
	for _, childOff := range a.children[off] {
		children = append(children, a.entries[childOff])
	}
	return children, nil
}

func (a *Arena) TypeReference(entry *dwarf.Entry, attr dwarf.Attr) (dwarf.Offset, error) {
	v := entry.Val(attr)
	if v == nil {
		return 0, errors.Wrapf(elf.AttrNotFoundError, "%s at 0x%x", attr, entry.Offset)
	}
	off, ok := v.(dwarf.Offset)
	if !ok {
		return 0, errors.Wrapf(elf.MalformedReferenceError, "%s at 0x%x", attr, entry.Offset)
	}
	return off, nil
}

func (a *Arena) FileTable(off dwarf.Offset) ([]*dwarf.LineFile, error) {
	if files, ok := a.files[a.owner[off]]; ok {
		return files, nil
	}
	return nil, errors.Wrapf(elf.NoLineTableError, "offset 0x%x", off)
}

// Field helpers for terse DIE literals.

func Name(v string) dwarf.Field {
	return dwarf.Field{Attr: dwarf.AttrName, Val: v, Class: dwarf.ClassString}
}

func ByteSize(n int64) dwarf.Field {
	return dwarf.Field{Attr: dwarf.AttrByteSize, Val: n, Class: dwarf.ClassConstant}
}

func TypeRef(off dwarf.Offset) dwarf.Field {
	return dwarf.Field{Attr: dwarf.AttrType, Val: off, Class: dwarf.ClassReference}
}

func Ref(attr dwarf.Attr, off dwarf.Offset) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: off, Class: dwarf.ClassReference}
}

func Const(attr dwarf.Attr, v int64) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: v, Class: dwarf.ClassConstant}
}

func Flag(attr dwarf.Attr) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: true, Class: dwarf.ClassFlag}
}

func Block(attr dwarf.Attr, raw []byte) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: raw, Class: dwarf.ClassBlock}
}
