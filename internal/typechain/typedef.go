package typechain

import (
	"debug/dwarf"

	log "github.com/sirupsen/logrus"

	"github.com/consoledbg/dwarfclass/internal/index"
)

// ResolveTypedefChain follows a typedef name to the spelling it
// ultimately stands for, hopping through intermediate typedefs. The
// result is memoized per resolver; a name that resolves to nothing
// better resolves to itself.
func (r *Resolver) ResolveTypedefChain(name string) string {
	if result, ok := r.typedefMemo[name]; ok {
		return result
	}
	result := r.resolveTypedef(name, map[string]struct{}{})
	r.typedefMemo[name] = result
	return result
}

func (r *Resolver) resolveTypedef(name string, seen map[string]struct{}) string {
	if mapped, ok := PrimitiveTypedefs[name]; ok {
		return mapped
	}
	if _, cyc := seen[name]; cyc {
		log.Warnf("typedef chain cycle at %q", name)
		return name
	}
	seen[name] = struct{}{}

	off, found := r.lookupTypedef(name)
	if !found {
		return name
	}
	entry, err := r.idx.ResolveEntry(off)
	if err != nil {
		return name
	}
	underlying, _, _ := r.ResolveType(entry)
	if underlying == name || underlying == UnknownTypeName || underlying == VoidName {
		return name
	}
	// Chains like MtU32 -> u32 -> unsigned int need another hop.
	if r.isKnownTypedef(underlying) {
		return r.resolveTypedef(underlying, seen)
	}
	return underlying
}

func (r *Resolver) lookupTypedef(name string) (dwarf.Offset, bool) {
	if off, ok := r.idx.LookupOrSearch(name, index.KindTypedef); ok {
		return off, true
	}
	for _, alt := range ExpandSearch(name)[1:] {
		if off, ok := r.idx.FindOffset(alt, index.KindTypedef); ok {
			return off, true
		}
	}
	return 0, false
}

// isKnownTypedef consults the primitive table and already-indexed
// symbols only. Scanning every compilation unit per underlying name
// would defeat the lazy design.
func (r *Resolver) isKnownTypedef(name string) bool {
	if _, ok := PrimitiveTypedefs[name]; ok {
		return true
	}
	_, ok := r.idx.FindOffset(name, index.KindTypedef)
	return ok
}
