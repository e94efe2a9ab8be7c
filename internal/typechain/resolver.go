// Package typechain walks DWARF type-reference chains down to display
// names and terminal definitions. A member DIE rarely points straight
// at a class: pointers, qualifiers, typedefs and arrays stack between
// the use site and the type that actually defines layout, and both
// ends of that chain are needed, the composed name for rendering and
// the terminal offset for dependency tracking.
package typechain

import (
	"debug/dwarf"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/consoledbg/dwarfclass/internal/index"
)

// MaxChainDepth bounds one chain walk. Real toolchain output stays in
// single digits; anything deeper is malformed debug info.
const MaxChainDepth = 20

const (
	VoidName        = "void"
	UnknownTypeName = "unknown_type"
)

// anonymousNames are the placeholder names given to unnamed aggregate
// terminals so later stages can tell them apart from real classes.
var anonymousNames = map[dwarf.Tag]string{
	dwarf.TagClassType:       "class_type",
	dwarf.TagStructType:      "structure_type",
	dwarf.TagUnionType:       "union_type",
	dwarf.TagEnumerationType: "enumeration_type",
}

// internalNames collects every placeholder this package can produce.
// Dependency extraction and header rendering skip these outright.
var internalNames = map[string]struct{}{
	"class_type":       {},
	"structure_type":   {},
	"union_type":       {},
	"enumeration_type": {},
	"subroutine_type":  {},
	UnknownTypeName:    {},
}

// IsInternalName reports whether name is a resolver placeholder rather
// than a type name found in the binary.
func IsInternalName(name string) bool {
	_, ok := internalNames[name]
	return ok
}

type Resolver struct {
	idx *index.Service

	typedefMemo map[string]string
}

func New(idx *index.Service) *Resolver {
	return &Resolver{
		idx:         idx,
		typedefMemo: map[string]string{},
	}
}

type resolved struct {
	display  string
	terminal dwarf.Offset
	hasTerm  bool
}

// ResolveType resolves the DW_AT_type chain of a use-site DIE such as
// a member, parameter or variable. It returns the display name, the
// offset of the terminal defining DIE, and whether such a terminal was
// reached. A missing type attribute means void.
func (r *Resolver) ResolveType(entry *dwarf.Entry) (display string, terminal dwarf.Offset, ok bool) {
	off, err := r.idx.TypeReference(entry, dwarf.AttrType)
	if err != nil {
		if entry.Val(dwarf.AttrType) == nil {
			return VoidName, 0, false
		}
		log.Debugf("bad type reference on %s at 0x%x: %v", entry.Tag, entry.Offset, err)
		return UnknownTypeName, 0, false
	}
	return r.ResolveTypeAt(off)
}

// ResolveTypeAt resolves the chain starting at a type DIE offset.
// Results are memoized in the index's bounded type cache, keyed by the
// chain head, so repeated members of the same type cost one walk.
func (r *Resolver) ResolveTypeAt(off dwarf.Offset) (display string, terminal dwarf.Offset, ok bool) {
	if info, cached := r.idx.CachedType(off); cached {
		return info.Name, info.Terminal, info.HasTerminal
	}
	res := r.walk(off, map[dwarf.Offset]struct{}{}, 0)
	r.idx.StoreType(off, index.TypeInfo{
		Name:        res.display,
		Terminal:    res.terminal,
		HasTerminal: res.hasTerm,
	})
	return res.display, res.terminal, res.hasTerm
}

func (r *Resolver) walk(off dwarf.Offset, visited map[dwarf.Offset]struct{}, depth int) resolved {
	if depth >= MaxChainDepth {
		log.Warnf("type chain at 0x%x exceeds %d steps, giving up", off, MaxChainDepth)
		return resolved{display: UnknownTypeName}
	}
	if _, seen := visited[off]; seen {
		// Chain loops back on itself. Settle for the revisited
		// entry's own name so the header still reads.
		name := UnknownTypeName
		if entry, err := r.idx.ResolveEntry(off); err == nil {
			if n, ok := entry.Val(dwarf.AttrName).(string); ok {
				name = n
			}
		}
		log.Warnf("type chain cycle at 0x%x, using %q", off, name)
		return resolved{display: name}
	}
	visited[off] = struct{}{}

	entry, err := r.idx.ResolveEntry(off)
	if err != nil {
		log.Debugf("unresolvable type reference 0x%x: %v", off, err)
		return resolved{display: UnknownTypeName}
	}

	switch entry.Tag {
	case dwarf.TagPointerType:
		inner := r.next(entry, visited, depth)
		inner.display += "*"
		return inner

	case dwarf.TagReferenceType:
		inner := r.next(entry, visited, depth)
		inner.display += "&"
		return inner

	case dwarf.TagRvalueReferenceType:
		inner := r.next(entry, visited, depth)
		inner.display += "&&"
		return inner

	case dwarf.TagConstType:
		inner := r.next(entry, visited, depth)
		inner.display = "const " + inner.display
		return inner

	case dwarf.TagVolatileType:
		inner := r.next(entry, visited, depth)
		inner.display = "volatile " + inner.display
		return inner

	case dwarf.TagRestrictType:
		// restrict has no C++ spelling worth keeping.
		return r.next(entry, visited, depth)

	case dwarf.TagTypedef:
		// The typedef name is the display name the programmer
		// wrote. The walk still continues underneath so the
		// terminal points at the defining aggregate, if any.
		inner := r.next(entry, visited, depth)
		if name, ok := entry.Val(dwarf.AttrName).(string); ok && name != "" {
			inner.display = name
		}
		return inner

	case dwarf.TagArrayType:
		inner := r.next(entry, visited, depth)
		inner.display += r.arrayDims(entry)
		return inner

	case dwarf.TagPtrToMemberType:
		// Prefer the class the member belongs to over the
		// pointee type; that is the dependency that matters.
		if coff, err := r.idx.TypeReference(entry, dwarf.AttrContainingType); err == nil {
			inner := r.walk(coff, visited, depth+1)
			inner.display += "::*"
			return inner
		}
		inner := r.next(entry, visited, depth)
		inner.display += "::*"
		return inner

	case dwarf.TagSubroutineType:
		// Function types collapse to their return type. The
		// parameter list never affects layout or dependencies.
		return r.next(entry, visited, depth)

	case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagEnumerationType:
		if name, ok := entry.Val(dwarf.AttrName).(string); ok && name != "" {
			return resolved{display: name, terminal: off, hasTerm: true}
		}
		// Anonymous aggregates are terminals too; the parser
		// inlines their bodies at the use site.
		return resolved{display: anonymousNames[entry.Tag], terminal: off, hasTerm: true}

	case dwarf.TagBaseType:
		if name, ok := entry.Val(dwarf.AttrName).(string); ok && name != "" {
			return resolved{display: name, terminal: off, hasTerm: true}
		}
		return resolved{display: UnknownTypeName}

	case dwarf.TagUnspecifiedType:
		return resolved{display: VoidName}

	default:
		// Unexpected mid-chain tag. Its name is still better
		// than nothing.
		if name, ok := entry.Val(dwarf.AttrName).(string); ok && name != "" {
			return resolved{display: name, terminal: off, hasTerm: true}
		}
		log.Debugf("unexpected %s in type chain at 0x%x", entry.Tag, off)
		return resolved{display: UnknownTypeName}
	}
}

// next follows entry's DW_AT_type one step down the chain.
func (r *Resolver) next(entry *dwarf.Entry, visited map[dwarf.Offset]struct{}, depth int) resolved {
	off, err := r.idx.TypeReference(entry, dwarf.AttrType)
	if err != nil {
		if entry.Val(dwarf.AttrType) == nil {
			return resolved{display: VoidName}
		}
		return resolved{display: UnknownTypeName}
	}
	return r.walk(off, visited, depth+1)
}

// arrayDims renders the subrange children of an array DIE as C array
// suffixes. DW_AT_count wins, then upper−lower+1, then an unsized [].
func (r *Resolver) arrayDims(entry *dwarf.Entry) string {
	children, err := r.idx.ChildrenOf(entry.Offset)
	if err != nil {
		return "[]"
	}
	dims := ""
	for _, child := range children {
		if child.Tag != dwarf.TagSubrangeType {
			continue
		}
		if count, ok := child.Val(dwarf.AttrCount).(int64); ok {
			dims += fmt.Sprintf("[%d]", count)
			continue
		}
		if upper, ok := child.Val(dwarf.AttrUpperBound).(int64); ok {
			lower := int64(0)
			if l, ok := child.Val(dwarf.AttrLowerBound).(int64); ok {
				lower = l
			}
			dims += fmt.Sprintf("[%d]", upper-lower+1)
			continue
		}
		dims += "[]"
	}
	if dims == "" {
		return "[]"
	}
	return dims
}
