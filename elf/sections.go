package elf

// Stats summarizes the debug payload for verbose diagnostics.
type Stats struct {
	Platform      Platform
	DwarfVersion  int
	CompileUnits  int
	SymbolCount   int
	DebugInfoSize uint64
	DebugStrSize  uint64
	DebugLineSize uint64
}

func (e *ELF) Stats() (stats Stats, err error) {
	cus, err := e.IterCompilationUnits()
	if err != nil {
		return
	}
	stats.Platform = e.Platform()
	stats.CompileUnits = len(cus)
	if len(cus) > 0 {
		stats.DwarfVersion = cus[0].Version
	}
	if symbols, _, serr := e.Symbols(); serr == nil {
		stats.SymbolCount = len(symbols)
	}
	stats.DebugInfoSize = uint64(len(e.info))
	for _, name := range []string{".debug_str", ".zdebug_str"} {
		if section := e.elfFile.Section(name); section != nil {
			stats.DebugStrSize = section.Size
			break
		}
	}
	for _, name := range []string{".debug_line", ".zdebug_line"} {
		if section := e.elfFile.Section(name); section != nil {
			stats.DebugLineSize = section.Size
			break
		}
	}
	return
}
