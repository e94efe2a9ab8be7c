package elf

import (
	"debug/dwarf"
	"debug/elf"
	"os"

	"github.com/go-delve/delve/pkg/dwarf/godwarf"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ELF wraps a console binary and its DWARF data. Debug sections are loaded
// through delve's godwarf helpers so compressed and plain variants both work;
// optional sections missing from non-standard layouts degrade to nil instead
// of failing the open.
type ELF struct {
	bin       string
	binFile   *os.File
	elfFile   *elf.File
	dwarfData *dwarf.Data
	info      []byte

	cache map[string]interface{}
}

func New(bin string) (_ *ELF, err error) {
	binFile, err := os.Open(bin)
	if err != nil {
		return
	}
	elfFile, err := elf.NewFile(binFile)
	if err != nil {
		err = errors.WithMessage(err, bin)
		return
	}
	info, err := godwarf.GetDebugSectionElf(elfFile, "info")
	if err != nil {
		err = errors.Wrap(NoDebugInfoError, bin)
		return
	}
	abbrev, err := godwarf.GetDebugSectionElf(elfFile, "abbrev")
	if err != nil {
		abbrev = nil
	}
	aranges, err := godwarf.GetDebugSectionElf(elfFile, "aranges")
	if err != nil {
		aranges = nil
	}
	frame, err := godwarf.GetDebugSectionElf(elfFile, "frame")
	if err != nil {
		frame = nil
	}
	line, err := godwarf.GetDebugSectionElf(elfFile, "line")
	if err != nil {
		line = nil
	}
	pubnames, err := godwarf.GetDebugSectionElf(elfFile, "pubnames")
	if err != nil {
		pubnames = nil
	}
	ranges, err := godwarf.GetDebugSectionElf(elfFile, "ranges")
	if err != nil {
		ranges = nil
	}
	str, err := godwarf.GetDebugSectionElf(elfFile, "str")
	if err != nil {
		str = nil
	}
	dwarfData, err := dwarf.New(abbrev, aranges, frame, info, line, pubnames, ranges, str)
	if err != nil {
		err = errors.WithMessage(err, bin)
		return
	}
	e := &ELF{
		bin:       bin,
		binFile:   binFile,
		elfFile:   elfFile,
		dwarfData: dwarfData,
		info:      info,
		cache:     map[string]interface{}{},
	}
	log.Debugf("opened %s: platform=%s machine=%s", bin, e.Platform(), elfFile.Machine)
	return e, nil
}

func (e *ELF) Path() string {
	return e.bin
}
