package typechain

import (
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consoledbg/dwarfclass/internal/dwarftest"
	"github.com/consoledbg/dwarfclass/internal/index"
)

// chainArena wires one compilation unit with every chain shape the
// resolver has to handle.
func chainArena(t *testing.T) (*dwarftest.Arena, *index.Service) {
	t.Helper()
	arena := dwarftest.NewArena()
	arena.NewCU(0x100, "types.cpp")

	arena.AddEntry(0x130, 0, dwarf.TagBaseType, dwarftest.Name("int"), dwarftest.ByteSize(4))
	arena.AddEntry(0x134, 0, dwarf.TagBaseType, dwarftest.Name("unsigned int"), dwarftest.ByteSize(4))
	arena.AddEntry(0x138, 0, dwarf.TagBaseType, dwarftest.Name("float"), dwarftest.ByteSize(4))
	arena.AddEntry(0x140, 0, dwarf.TagStructType, dwarftest.Name("Vec3"), dwarftest.ByteSize(12))

	// const Vec3*
	arena.AddEntry(0x150, 0, dwarf.TagConstType, dwarftest.TypeRef(0x140))
	arena.AddEntry(0x154, 0, dwarf.TagPointerType, dwarftest.TypeRef(0x150))
	arena.AddEntry(0x158, 0, dwarf.TagMember, dwarftest.Name("pos"), dwarftest.TypeRef(0x154))

	// typedef u32 -> unsigned int
	arena.AddEntry(0x160, 0, dwarf.TagTypedef, dwarftest.Name("u32"), dwarftest.TypeRef(0x134))
	arena.AddEntry(0x164, 0, dwarf.TagMember, dwarftest.Name("flags"), dwarftest.TypeRef(0x160))

	// int[4] via DW_AT_count
	arena.AddEntry(0x170, 0, dwarf.TagArrayType, dwarftest.TypeRef(0x130))
	arena.AddEntry(0x171, 0x170, dwarf.TagSubrangeType, dwarftest.Const(dwarf.AttrCount, 4))
	arena.AddEntry(0x176, 0, dwarf.TagMember, dwarftest.Name("ids"), dwarftest.TypeRef(0x170))

	// float[8] via DW_AT_upper_bound
	arena.AddEntry(0x180, 0, dwarf.TagArrayType, dwarftest.TypeRef(0x138))
	arena.AddEntry(0x181, 0x180, dwarf.TagSubrangeType, dwarftest.Const(dwarf.AttrUpperBound, 7))
	arena.AddEntry(0x186, 0, dwarf.TagMember, dwarftest.Name("weights"), dwarftest.TypeRef(0x180))

	// int[] with an unbounded subrange
	arena.AddEntry(0x190, 0, dwarf.TagArrayType, dwarftest.TypeRef(0x130))
	arena.AddEntry(0x191, 0x190, dwarf.TagSubrangeType)
	arena.AddEntry(0x196, 0, dwarf.TagMember, dwarftest.Name("open"), dwarftest.TypeRef(0x190))

	// member with no type attribute, member with a dangling reference
	arena.AddEntry(0x1a0, 0, dwarf.TagMember, dwarftest.Name("pad"))
	arena.AddEntry(0x1a4, 0, dwarf.TagMember, dwarftest.Name("ghost"), dwarftest.TypeRef(0xdead))

	// anonymous union
	arena.AddEntry(0x1b0, 0, dwarf.TagUnionType, dwarftest.ByteSize(8))
	arena.AddEntry(0x1b4, 0, dwarf.TagMember, dwarftest.Name("value"), dwarftest.TypeRef(0x1b0))

	// int (*callback)(...) collapses to int*
	arena.AddEntry(0x1c0, 0, dwarf.TagSubroutineType, dwarftest.TypeRef(0x130))
	arena.AddEntry(0x1c8, 0, dwarf.TagPointerType, dwarftest.TypeRef(0x1c0))
	arena.AddEntry(0x1cc, 0, dwarf.TagMember, dwarftest.Name("callback"), dwarftest.TypeRef(0x1c8))

	// pointer to member of Vec3
	arena.AddEntry(0x1d0, 0, dwarf.TagPtrToMemberType,
		dwarftest.Ref(dwarf.AttrContainingType, 0x140), dwarftest.TypeRef(0x130))
	arena.AddEntry(0x1d4, 0, dwarf.TagMember, dwarftest.Name("field"), dwarftest.TypeRef(0x1d0))

	// Vec3&, Vec3&&, volatile unsigned int
	arena.AddEntry(0x1e0, 0, dwarf.TagReferenceType, dwarftest.TypeRef(0x140))
	arena.AddEntry(0x1e4, 0, dwarf.TagMember, dwarftest.Name("ref"), dwarftest.TypeRef(0x1e0))
	arena.AddEntry(0x200, 0, dwarf.TagRvalueReferenceType, dwarftest.TypeRef(0x140))
	arena.AddEntry(0x204, 0, dwarf.TagMember, dwarftest.Name("moved"), dwarftest.TypeRef(0x200))
	arena.AddEntry(0x210, 0, dwarf.TagVolatileType, dwarftest.TypeRef(0x134))
	arena.AddEntry(0x214, 0, dwarf.TagMember, dwarftest.Name("hw"), dwarftest.TypeRef(0x210))

	// int[2][3]
	arena.AddEntry(0x220, 0, dwarf.TagArrayType, dwarftest.TypeRef(0x130))
	arena.AddEntry(0x221, 0x220, dwarf.TagSubrangeType, dwarftest.Const(dwarf.AttrCount, 2))
	arena.AddEntry(0x222, 0x220, dwarf.TagSubrangeType, dwarftest.Const(dwarf.AttrCount, 3))
	arena.AddEntry(0x226, 0, dwarf.TagMember, dwarftest.Name("grid"), dwarftest.TypeRef(0x220))

	// two typedefs referencing each other
	arena.AddEntry(0x230, 0, dwarf.TagTypedef, dwarftest.Name("LoopA"), dwarftest.TypeRef(0x234))
	arena.AddEntry(0x234, 0, dwarf.TagTypedef, dwarftest.Name("LoopB"), dwarftest.TypeRef(0x230))

	svc, err := index.New(arena, index.Options{})
	require.NoError(t, err)
	return arena, svc
}

func memberAt(t *testing.T, svc *index.Service, off dwarf.Offset) *dwarf.Entry {
	t.Helper()
	entry, err := svc.ResolveEntry(off)
	require.NoError(t, err)
	return entry
}

func TestResolveQualifierChains(t *testing.T) {
	_, svc := chainArena(t)
	r := New(svc)

	for _, tt := range []struct {
		member   dwarf.Offset
		display  string
		terminal dwarf.Offset
		hasTerm  bool
	}{
		{0x158, "const Vec3*", 0x140, true},
		{0x164, "u32", 0x134, true},
		{0x176, "int[4]", 0x130, true},
		{0x186, "float[8]", 0x138, true},
		{0x196, "int[]", 0x130, true},
		{0x1a0, "void", 0, false},
		{0x1a4, "unknown_type", 0, false},
		{0x1b4, "union_type", 0x1b0, true},
		{0x1cc, "int*", 0x130, true},
		{0x1d4, "Vec3::*", 0x140, true},
		{0x1e4, "Vec3&", 0x140, true},
		{0x204, "Vec3&&", 0x140, true},
		{0x214, "volatile unsigned int", 0x134, true},
		{0x226, "int[2][3]", 0x130, true},
	} {
		display, terminal, ok := r.ResolveType(memberAt(t, svc, tt.member))
		require.Equal(t, tt.display, display, "member 0x%x", tt.member)
		require.Equal(t, tt.hasTerm, ok, "member 0x%x", tt.member)
		if tt.hasTerm {
			require.Equal(t, tt.terminal, terminal, "member 0x%x", tt.member)
		}
	}
}

func TestResolveTypeCycleTerminates(t *testing.T) {
	_, svc := chainArena(t)
	r := New(svc)

	display, _, ok := r.ResolveTypeAt(0x230)
	require.Equal(t, "LoopA", display)
	require.False(t, ok)
}

func TestResolveTypeMemoized(t *testing.T) {
	arena, _ := chainArena(t)
	// A one-slot entry cache forces every walk back to the arena, so
	// only the resolved-type cache can keep the second call free.
	svc, err := index.New(arena, index.Options{EntryCacheSize: 1})
	require.NoError(t, err)
	r := New(svc)

	first, _, _ := r.ResolveTypeAt(0x154)
	fetched := arena.Fetches
	again, _, _ := r.ResolveTypeAt(0x154)
	require.Equal(t, first, again)
	require.Equal(t, fetched, arena.Fetches, "second resolve should hit the type cache")
}

func TestInternalNames(t *testing.T) {
	require.True(t, IsInternalName("structure_type"))
	require.True(t, IsInternalName("unknown_type"))
	require.False(t, IsInternalName("Vec3"))
}
