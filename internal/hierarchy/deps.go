// Package hierarchy orders classes base-to-derived and gathers the
// dependent types a self-contained header needs declared first.
package hierarchy

import (
	"debug/dwarf"
	"sort"

	"github.com/consoledbg/dwarfclass/internal/classparse"
	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/internal/typechain"
)

type Builder struct {
	idx    *index.Service
	parser *classparse.Parser
}

func New(idx *index.Service, parser *classparse.Parser) *Builder {
	return &Builder{idx: idx, parser: parser}
}

// ExtractDependencies collects the forward-declarable terminal offsets
// a model references through members, unions, method signatures and
// nested aggregates. Offsets come out deduplicated in first-use order;
// display strings are never re-parsed.
func (b *Builder) ExtractDependencies(model *classparse.ClassModel) []dwarf.Offset {
	seen := map[dwarf.Offset]struct{}{}
	deps := []dwarf.Offset{}
	collect := func(off dwarf.Offset, has bool) {
		if !has {
			return
		}
		if _, dup := seen[off]; dup {
			return
		}
		seen[off] = struct{}{}
		if b.forwardDeclarable(off) {
			deps = append(deps, off)
		}
	}
	b.walkModel(model, collect)
	return deps
}

func (b *Builder) walkModel(model *classparse.ClassModel, collect func(dwarf.Offset, bool)) {
	for _, m := range model.Members {
		collect(m.TypeOffset, m.HasType)
	}
	for _, u := range model.Unions {
		for _, m := range u.Members {
			collect(m.TypeOffset, m.HasType)
		}
		for _, nested := range u.Structs {
			b.walkModel(nested, collect)
		}
	}
	for _, method := range model.Methods {
		collect(method.ReturnOffset, method.HasReturn)
		for _, p := range method.Params {
			collect(p.TypeOffset, p.HasType)
		}
	}
	for _, nested := range model.Structs {
		b.walkModel(nested, collect)
	}
}

// ForwardDeclarations names the external aggregates the models
// reference, sorted. Types any of the models define themselves,
// nested ones included, are excluded so a header never declares what
// it is about to define.
func (b *Builder) ForwardDeclarations(models ...*classparse.ClassModel) []string {
	defined := map[string]struct{}{}
	for _, model := range models {
		collectDefined(model, defined)
	}

	seen := map[string]struct{}{}
	var names []string
	for _, model := range models {
		for _, off := range b.ExtractDependencies(model) {
			entry, err := b.idx.ResolveEntry(off)
			if err != nil {
				continue
			}
			name, _ := entry.Val(dwarf.AttrName).(string)
			if _, own := defined[name]; own {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func collectDefined(model *classparse.ClassModel, defined map[string]struct{}) {
	defined[model.Name] = struct{}{}
	for _, e := range model.Enums {
		defined[e.Name] = struct{}{}
	}
	for _, td := range model.Typedefs {
		defined[td.Name] = struct{}{}
	}
	for _, u := range model.Unions {
		if u.Name != "" {
			defined[u.Name] = struct{}{}
		}
		for _, nested := range u.Structs {
			collectDefined(nested, defined)
		}
	}
	for _, nested := range model.Structs {
		collectDefined(nested, defined)
	}
}

// forwardDeclarable keeps class/struct/union terminals with a real
// name. Enums and typedefs cannot be forward-declared; anonymous and
// primitive-named types have nothing to declare.
func (b *Builder) forwardDeclarable(off dwarf.Offset) bool {
	entry, err := b.idx.ResolveEntry(off)
	if err != nil {
		return false
	}
	switch entry.Tag {
	case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType:
	default:
		return false
	}
	name, ok := entry.Val(dwarf.AttrName).(string)
	if !ok || name == "" {
		return false
	}
	if typechain.IsInternalName(name) || typechain.IsPrimitiveName(name) {
		return false
	}
	return true
}
