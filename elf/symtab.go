package elf

import (
	"debug/elf"
	"sort"
)

// Symbols returns the symbol table sorted by address, plus a name map.
// Retail console binaries are usually stripped; callers treat an error
// here as an absent table, not a broken binary.
func (e *ELF) Symbols() (symbols []elf.Symbol, symnames map[string]elf.Symbol, err error) {
	if _, ok := e.cache["symbols"]; ok {
		return e.cache["symbols"].([]elf.Symbol), e.cache["symnames"].(map[string]elf.Symbol), nil
	}

	if symbols, err = e.elfFile.Symbols(); err != nil {
		return
	}

	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Value < symbols[j].Value })

	symnames = map[string]elf.Symbol{}
	for _, symbol := range symbols {
		symnames[symbol.Name] = symbol
	}
	e.cache["symbols"] = symbols
	e.cache["symnames"] = symnames
	return
}
