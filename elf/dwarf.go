package elf

import (
	"debug/dwarf"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// CompilationUnit describes one unit header in .debug_info. DIEs of the unit
// occupy [DIEOffset, NextOffset); unit ranges are disjoint.
type CompilationUnit struct {
	Offset      dwarf.Offset
	DIEOffset   dwarf.Offset
	NextOffset  dwarf.Offset
	Name        string
	Version     int
	AddressSize int
}

// IterCompilationUnits walks the unit headers once and caches the result.
// Unit version and address size come straight from the header bytes since
// debug/dwarf does not expose them.
func (e *ELF) IterCompilationUnits() (cus []CompilationUnit, err error) {
	if v, ok := e.cache["compileUnits"]; ok {
		return v.([]CompilationUnit), nil
	}

	bo := e.elfFile.ByteOrder
	off := 0
	for off+11 <= len(e.info) {
		unitLen := bo.Uint32(e.info[off:])
		if unitLen == 0xffffffff {
			// 64-bit DWARF never appears in console SDK output
			err = errors.Wrapf(MalformedDwarfError, "64-bit unit at 0x%x", off)
			return
		}
		next := off + 4 + int(unitLen)
		if next <= off+4 || next > len(e.info) {
			err = errors.Wrapf(MalformedDwarfError, "unit length %d at 0x%x", unitLen, off)
			return
		}
		cus = append(cus, CompilationUnit{
			Offset:      dwarf.Offset(off),
			DIEOffset:   dwarf.Offset(off + 11),
			NextOffset:  dwarf.Offset(next),
			Version:     int(bo.Uint16(e.info[off+4:])),
			AddressSize: int(e.info[off+10]),
		})
		off = next
	}

	infoReader := e.dwarfData.Reader()
	for i := range cus {
		infoReader.Seek(cus[i].DIEOffset)
		entry, e2 := infoReader.Next()
		if e2 != nil || entry == nil || entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		if v, ok := entry.Val(dwarf.AttrName).(string); ok {
			cus[i].Name = v
		}
	}
	e.cache["compileUnits"] = cus
	return
}

// CUForOffset locates the unit whose byte range contains off.
func (e *ELF) CUForOffset(off dwarf.Offset) (cu CompilationUnit, ok bool) {
	cus, err := e.IterCompilationUnits()
	if err != nil {
		return
	}
	idx := sort.Search(len(cus), func(i int) bool { return cus[i].NextOffset > off })
	if idx == len(cus) || cus[idx].Offset > off {
		return
	}
	return cus[idx], true
}

// EntriesInCU streams the DIEs of one unit in declaration order, the way the
// whole-section iterator used to, but bounded to the unit.
func (e *ELF) EntriesInCU(cu CompilationUnit) <-chan *dwarf.Entry {
	ch := make(chan *dwarf.Entry)
	go func() {
		defer close(ch)
		infoReader := e.dwarfData.Reader()
		infoReader.Seek(cu.DIEOffset)
		for {
			entry, err := infoReader.Next()
			if err != nil || entry == nil || entry.Offset >= cu.NextOffset {
				return
			}
			if entry.Tag == 0 {
				continue
			}
			ch <- entry
		}
	}()
	return ch
}

// EntryAt reads the single DIE at off.
func (e *ELF) EntryAt(off dwarf.Offset) (entry *dwarf.Entry, err error) {
	infoReader := e.dwarfData.Reader()
	infoReader.Seek(off)
	entry, err = infoReader.Next()
	if err != nil {
		err = errors.WithMessage(err, fmt.Sprintf("offset 0x%x", off))
		return
	}
	if entry == nil || entry.Offset != off {
		entry = nil
		err = errors.Wrapf(EntryNotFoundError, "offset 0x%x", off)
	}
	return
}

// ChildrenOf returns the direct children of the DIE at off, skipping over
// grandchildren subtrees.
func (e *ELF) ChildrenOf(off dwarf.Offset) (children []*dwarf.Entry, err error) {
	infoReader := e.dwarfData.Reader()
	infoReader.Seek(off)
	parent, err := infoReader.Next()
	if err != nil {
		return
	}
	if parent == nil || parent.Offset != off {
		err = errors.Wrapf(EntryNotFoundError, "offset 0x%x", off)
		return
	}
	if !parent.Children {
		return
	}
	for {
		child, e2 := infoReader.Next()
		if e2 != nil {
			err = e2
			return
		}
		if child == nil || child.Tag == 0 {
			return
		}
		children = append(children, child)
		infoReader.SkipChildren()
	}
}

// TypeReference follows a reference-valued attribute to its target offset.
func (e *ELF) TypeReference(entry *dwarf.Entry, attr dwarf.Attr) (off dwarf.Offset, err error) {
	v := entry.Val(attr)
	if v == nil {
		err = errors.Wrapf(AttrNotFoundError, "%s on %s at 0x%x", attr, entry.Tag, entry.Offset)
		return
	}
	off, ok := v.(dwarf.Offset)
	if !ok {
		err = errors.Wrapf(MalformedReferenceError, "%s on %s at 0x%x", attr, entry.Tag, entry.Offset)
	}
	return
}

// FileTable returns the line-program file table of the unit owning off.
// Indices follow DW_AT_decl_file numbering, so slot 0 may be nil.
func (e *ELF) FileTable(off dwarf.Offset) (files []*dwarf.LineFile, err error) {
	cu, ok := e.CUForOffset(off)
	if !ok {
		err = errors.Wrapf(EntryNotFoundError, "no unit for offset 0x%x", off)
		return
	}
	key := fmt.Sprintf("fileTable:%d", cu.Offset)
	if v, ok := e.cache[key]; ok {
		return v.([]*dwarf.LineFile), nil
	}
	cuDIE, err := e.EntryAt(cu.DIEOffset)
	if err != nil {
		return
	}
	lineReader, err := e.dwarfData.LineReader(cuDIE)
	if err != nil || lineReader == nil {
		err = errors.Wrapf(NoLineTableError, "unit at 0x%x", cu.Offset)
		return
	}
	files = lineReader.Files()
	e.cache[key] = files
	return
}
