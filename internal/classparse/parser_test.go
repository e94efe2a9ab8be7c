package classparse

import (
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consoledbg/dwarfclass/internal/dwarftest"
	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/internal/typechain"
)

// widgetArena lays out one class exercising every child dispatch arm.
func widgetArena(t *testing.T) *Parser {
	t.Helper()
	arena := dwarftest.NewArena()
	arena.NewCU(0x100, "widget.cpp")
	arena.SetFileTable(0x100, "widget.h", "common.h")

	arena.AddEntry(0x110, 0, dwarf.TagBaseType, dwarftest.Name("int"), dwarftest.ByteSize(4))
	arena.AddEntry(0x114, 0, dwarf.TagBaseType, dwarftest.Name("unsigned int"), dwarftest.ByteSize(4))
	arena.AddEntry(0x118, 0, dwarf.TagBaseType, dwarftest.Name("float"), dwarftest.ByteSize(4))
	arena.AddEntry(0x120, 0, dwarf.TagStructType, dwarftest.Name("Base"), dwarftest.ByteSize(8))

	arena.AddEntry(0x300, 0, dwarf.TagClassType,
		dwarftest.Name("Widget"), dwarftest.ByteSize(0x20),
		dwarftest.Const(dwarf.AttrDeclFile, 1), dwarftest.Const(dwarf.AttrDeclLine, 42))

	arena.AddEntry(0x308, 0x300, dwarf.TagInheritance,
		dwarftest.TypeRef(0x120), dwarftest.Const(dwarf.AttrDataMemberLoc, 0))

	arena.AddEntry(0x310, 0x300, dwarf.TagMember,
		dwarftest.Name("id"), dwarftest.TypeRef(0x110), dwarftest.Const(dwarf.AttrDataMemberLoc, 8))
	arena.AddEntry(0x318, 0x300, dwarf.TagMember,
		dwarftest.Name("mask"), dwarftest.TypeRef(0x114),
		dwarftest.Block(dwarf.AttrDataMemberLoc, []byte{opPlusUconst, 0x0c}))
	arena.AddEntry(0x320, 0x300, dwarf.TagMember,
		dwarftest.Name("_vptr.Widget"), dwarftest.TypeRef(0xdead), dwarftest.Const(dwarf.AttrDataMemberLoc, 0))
	arena.AddEntry(0x328, 0x300, dwarf.TagMember,
		dwarftest.Name("kMax"), dwarftest.TypeRef(0x110),
		dwarftest.Flag(dwarf.AttrExternal), dwarftest.Flag(dwarf.AttrDeclaration),
		dwarftest.Const(dwarf.AttrConstValue, 64))
	arena.AddEntry(0x338, 0x300, dwarf.TagMember,
		dwarftest.Name("weird"), dwarftest.TypeRef(0x110),
		dwarftest.Block(dwarf.AttrDataMemberLoc, []byte{0x91, 0x10}))

	// unnamed bitfield-style member, no name and a base type
	arena.AddEntry(0x33c, 0x300, dwarf.TagMember,
		dwarftest.TypeRef(0x110), dwarftest.Const(dwarf.AttrDataMemberLoc, 20))

	// unnamed member typed as the union that also appears as a child
	arena.AddEntry(0x330, 0x300, dwarf.TagMember,
		dwarftest.TypeRef(0x340), dwarftest.Const(dwarf.AttrDataMemberLoc, 16))
	arena.AddEntry(0x340, 0x300, dwarf.TagUnionType, dwarftest.ByteSize(8))
	arena.AddEntry(0x344, 0x340, dwarf.TagMember,
		dwarftest.Name("raw"), dwarftest.TypeRef(0x114), dwarftest.Const(dwarf.AttrDataMemberLoc, 0))
	arena.AddEntry(0x348, 0x340, dwarf.TagMember,
		dwarftest.Name("flt"), dwarftest.TypeRef(0x118), dwarftest.Const(dwarf.AttrDataMemberLoc, 0))
	arena.AddEntry(0x34a, 0x340, dwarf.TagStructType,
		dwarftest.Name("Parts"), dwarftest.ByteSize(8))
	arena.AddEntry(0x34c, 0x34a, dwarf.TagMember,
		dwarftest.Name("lo"), dwarftest.TypeRef(0x114), dwarftest.Const(dwarf.AttrDataMemberLoc, 0))
	arena.AddEntry(0x34e, 0x34a, dwarf.TagMember,
		dwarftest.Name("hi"), dwarftest.TypeRef(0x114), dwarftest.Const(dwarf.AttrDataMemberLoc, 4))

	arena.AddEntry(0x350, 0x300, dwarf.TagSubprogram, dwarftest.Name("Widget"))
	arena.AddEntry(0x354, 0x350, dwarf.TagFormalParameter,
		dwarftest.Name("this"), dwarftest.TypeRef(0x300), dwarftest.Flag(dwarf.AttrArtificial))
	arena.AddEntry(0x358, 0x350, dwarf.TagFormalParameter,
		dwarftest.Name("id"), dwarftest.TypeRef(0x110))

	arena.AddEntry(0x360, 0x300, dwarf.TagSubprogram,
		dwarftest.Name("~Widget"), dwarftest.Const(dwarf.AttrVirtuality, 1))
	arena.AddEntry(0x364, 0x360, dwarf.TagFormalParameter,
		dwarftest.Name("this"), dwarftest.TypeRef(0x300), dwarftest.Flag(dwarf.AttrArtificial))

	arena.AddEntry(0x370, 0x300, dwarf.TagSubprogram,
		dwarftest.Name("update"), dwarftest.TypeRef(0x118))
	arena.AddEntry(0x374, 0x370, dwarf.TagFormalParameter,
		dwarftest.Name("this"), dwarftest.TypeRef(0x300), dwarftest.Flag(dwarf.AttrArtificial))
	arena.AddEntry(0x378, 0x370, dwarf.TagFormalParameter,
		dwarftest.Name("dt"), dwarftest.TypeRef(0x118))

	arena.AddEntry(0x380, 0x300, dwarf.TagEnumerationType,
		dwarftest.Name("State"), dwarftest.ByteSize(4))
	arena.AddEntry(0x384, 0x380, dwarf.TagEnumerator,
		dwarftest.Name("IDLE"), dwarftest.Const(dwarf.AttrConstValue, 0))
	arena.AddEntry(0x388, 0x380, dwarf.TagEnumerator,
		dwarftest.Name("RUNNING"), dwarftest.Const(dwarf.AttrConstValue, 1))
	arena.AddEntry(0x38c, 0x380, dwarf.TagEnumerator,
		dwarftest.Name("DONE"), dwarftest.Const(dwarf.AttrConstValue, 2))

	arena.AddEntry(0x390, 0x300, dwarf.TagStructType,
		dwarftest.Name("Config"), dwarftest.ByteSize(8))
	arena.AddEntry(0x394, 0x390, dwarf.TagMember,
		dwarftest.Name("flags"), dwarftest.TypeRef(0x114), dwarftest.Const(dwarf.AttrDataMemberLoc, 0))

	arena.AddEntry(0x3a0, 0x300, dwarf.TagTypedef,
		dwarftest.Name("Id"), dwarftest.TypeRef(0x110))
	arena.AddEntry(0x3b0, 0x300, dwarf.TagTemplateTypeParameter,
		dwarftest.Name("T"), dwarftest.TypeRef(0x110))
	arena.AddEntry(0x3c0, 0x300, dwarf.TagVariable, dwarftest.Name("ignored"))

	// unnamed struct with no byte size
	arena.AddEntry(0x400, 0, dwarf.TagStructType)

	svc, err := index.New(arena, index.Options{})
	require.NoError(t, err)
	return New(svc, typechain.New(svc))
}

func memberByName(t *testing.T, model *ClassModel, name string) MemberModel {
	t.Helper()
	for _, m := range model.Members {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("no member %q in %s", name, model.Name)
	return MemberModel{}
}

func TestParseClassWidget(t *testing.T) {
	p := widgetArena(t)

	model, err := p.ParseClass(0x300)
	require.NoError(t, err)

	require.Equal(t, "Widget", model.Name)
	require.Equal(t, int64(0x20), model.ByteSize)
	require.False(t, model.ForwardDecl)
	require.Equal(t, "widget.h", model.DeclFile)
	require.Equal(t, int64(42), model.DeclLine)
	require.Equal(t, []string{"Base"}, model.Bases)
	require.Equal(t, []string{"T = int"}, model.TemplateParams)

	id := memberByName(t, model, "id")
	require.Equal(t, "int", id.TypeName)
	require.Equal(t, int64(8), id.Offset)
	require.False(t, id.Static)

	mask := memberByName(t, model, "mask")
	require.Equal(t, int64(12), mask.Offset, "legacy location expression")

	vptr := memberByName(t, model, "_vptr.Widget")
	require.Equal(t, "void*", vptr.TypeName)

	kMax := memberByName(t, model, "kMax")
	require.True(t, kMax.Static)
	require.Equal(t, int64(-1), kMax.Offset)
	require.NotNil(t, kMax.ConstValue)
	require.Equal(t, int64(64), *kMax.ConstValue)

	weird := memberByName(t, model, "weird")
	require.Equal(t, int64(-1), weird.Offset, "unknown expression shape")

	require.Len(t, model.Members, 5, "unnamed non-aggregate member is dropped")
}

func TestParseClassPromotesAnonymousUnion(t *testing.T) {
	p := widgetArena(t)

	model, err := p.ParseClass(0x300)
	require.NoError(t, err)

	require.Len(t, model.Unions, 1, "promoted union must not reappear from the direct child")
	union := model.Unions[0]
	require.Empty(t, union.Name)
	require.Equal(t, int64(8), union.ByteSize)
	require.Equal(t, int64(16), union.ByteOffset)
	require.Len(t, union.Members, 2)
	require.Equal(t, "raw", union.Members[0].Name)
	require.Equal(t, "flt", union.Members[1].Name)

	require.Len(t, union.Structs, 1)
	overlay := union.Structs[0]
	require.Equal(t, "Parts", overlay.Name)
	require.Len(t, overlay.Members, 2)
	require.Equal(t, "lo", overlay.Members[0].Name)
	require.Equal(t, int64(4), overlay.Members[1].Offset)
}

func TestParseClassMethods(t *testing.T) {
	p := widgetArena(t)

	model, err := p.ParseClass(0x300)
	require.NoError(t, err)
	require.Len(t, model.Methods, 3)

	ctor := model.Methods[0]
	require.True(t, ctor.Ctor)
	require.False(t, ctor.Dtor)
	require.Len(t, ctor.Params, 2)
	require.True(t, ctor.Params[0].Artificial)
	require.Equal(t, "id", ctor.Params[1].Name)
	require.Equal(t, "int", ctor.Params[1].TypeName)

	dtor := model.Methods[1]
	require.True(t, dtor.Dtor)
	require.True(t, dtor.Virtual)

	update := model.Methods[2]
	require.Equal(t, "float", update.ReturnType)
	require.False(t, update.Virtual)
	require.False(t, update.Ctor)
}

func TestParseClassNestedTypes(t *testing.T) {
	p := widgetArena(t)

	model, err := p.ParseClass(0x300)
	require.NoError(t, err)

	require.Len(t, model.Enums, 1)
	require.Equal(t, "State", model.Enums[0].Name)
	require.Equal(t, []Enumerator{{"IDLE", 0}, {"RUNNING", 1}, {"DONE", 2}}, model.Enums[0].Enumerators)

	require.Len(t, model.Structs, 1)
	require.Equal(t, "Config", model.Structs[0].Name)
	require.Equal(t, "flags", model.Structs[0].Members[0].Name)

	require.Equal(t, []TypedefModel{{Name: "Id", Underlying: "int"}}, model.Typedefs)
}

func TestParseClassForwardDeclaration(t *testing.T) {
	p := widgetArena(t)

	model, err := p.ParseClass(0x400)
	require.NoError(t, err)
	require.Equal(t, UnknownClassName, model.Name)
	require.True(t, model.ForwardDecl)
	require.Zero(t, model.ByteSize)
}

func TestParseClassRejectsNonAggregate(t *testing.T) {
	p := widgetArena(t)

	_, err := p.ParseClass(0x110)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not an aggregate")
}

func TestParseClassMissingEntry(t *testing.T) {
	p := widgetArena(t)

	_, err := p.ParseClass(0x9999)
	require.Error(t, err)
}
