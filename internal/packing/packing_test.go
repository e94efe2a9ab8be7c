package packing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consoledbg/dwarfclass/internal/classparse"
)

func member(name, typeName string, offset int64) classparse.MemberModel {
	return classparse.MemberModel{Name: name, TypeName: typeName, Offset: offset}
}

func TestAnalyzeBytePacked(t *testing.T) {
	model := &classparse.ClassModel{Name: "Bytes", ByteSize: 8}
	for i := int64(0); i < 8; i++ {
		model.Members = append(model.Members, member("b", "char", i))
	}

	info := Analyze(model)
	require.Zero(t, info.TotalPadding)
	require.Equal(t, 1, info.SuggestedPack)
	require.Equal(t, int64(8), info.NaturalSize)
	require.Empty(t, info.Gaps)
}

func TestAnalyzeAlignmentGap(t *testing.T) {
	model := &classparse.ClassModel{
		Name: "Gapped", ByteSize: 16,
		Members: []classparse.MemberModel{
			member("flag", "char", 0),
			member("word", "u64", 8),
		},
	}

	info := Analyze(model)
	require.Equal(t, int64(7), info.TotalPadding)
	require.Equal(t, 8, info.SuggestedPack)
	require.Len(t, info.Gaps, 1)
	require.False(t, info.Gaps[0].Tail)
	require.Equal(t, "flag", info.Gaps[0].After)
	require.Equal(t, int64(1), info.Gaps[0].Offset)
	require.Equal(t, int64(7), info.Gaps[0].Size)
}

func TestAnalyzePackBoundaryAtTenth(t *testing.T) {
	// padding 3 of 40 stays within a tenth
	within := &classparse.ClassModel{
		Name: "Within", ByteSize: 40,
		Members: []classparse.MemberModel{
			member("head", "char", 0),
			member("body", "u8[36]", 4),
		},
	}
	info := Analyze(within)
	require.Equal(t, int64(3), info.TotalPadding)
	require.Equal(t, 4, info.SuggestedPack)

	// padding 4 of 40 sits exactly on the boundary
	exact := &classparse.ClassModel{
		Name: "Exact", ByteSize: 40,
		Members: []classparse.MemberModel{
			member("head", "u32", 0),
			member("body", "u8[32]", 8),
		},
	}
	info = Analyze(exact)
	require.Equal(t, int64(4), info.TotalPadding)
	require.Equal(t, 4, info.SuggestedPack)

	// padding 5 of 40 crosses it
	over := &classparse.ClassModel{
		Name: "Over", ByteSize: 40,
		Members: []classparse.MemberModel{
			member("head", "char", 0),
			member("body", "u8[34]", 6),
		},
	}
	info = Analyze(over)
	require.Equal(t, int64(5), info.TotalPadding)
	require.Equal(t, 8, info.SuggestedPack)
}

func TestAnalyzeTailPadding(t *testing.T) {
	model := &classparse.ClassModel{
		Name: "Tailed", ByteSize: 16,
		Members: []classparse.MemberModel{
			member("x", "int", 0),
			member("y", "int", 4),
		},
	}

	info := Analyze(model)
	require.Equal(t, int64(8), info.TotalPadding)
	require.Equal(t, 8, info.SuggestedPack)
	require.Len(t, info.Gaps, 1)
	require.True(t, info.Gaps[0].Tail)
	require.Equal(t, "y", info.Gaps[0].After)
	require.Equal(t, int64(8), info.Gaps[0].Offset)
	require.Equal(t, int64(8), info.Gaps[0].Size)
}

func TestAnalyzeLeadingGapIsNotPadding(t *testing.T) {
	// members of a derived class start past the base subobject
	model := &classparse.ClassModel{
		Name: "Derived", ByteSize: 16,
		Members: []classparse.MemberModel{
			member("own", "int", 8),
			member("more", "int", 12),
		},
	}

	info := Analyze(model)
	require.Zero(t, info.TotalPadding)
	require.Equal(t, 1, info.SuggestedPack)
	require.Len(t, info.Gaps, 1)
	require.Equal(t, "start", info.Gaps[0].After)
	require.Equal(t, int64(8), info.Gaps[0].Size)
}

func TestAnalyzeSkipsStaticsAndUnknownOffsets(t *testing.T) {
	model := &classparse.ClassModel{
		Name: "Mixed", ByteSize: 4,
		Members: []classparse.MemberModel{
			{Name: "kMax", TypeName: "int", Offset: -1, Static: true},
			{Name: "lost", TypeName: "int", Offset: -1},
			member("id", "int", 0),
		},
	}

	info := Analyze(model)
	require.Zero(t, info.TotalPadding)
	require.Equal(t, 1, info.SuggestedPack)
	require.Equal(t, int64(4), info.NaturalSize)
}

func TestAnalyzeEmptyModel(t *testing.T) {
	info := Analyze(&classparse.ClassModel{Name: "Fwd"})
	require.Equal(t, 1, info.SuggestedPack)
	require.Zero(t, info.TotalPadding)
}

func TestEstimateSize(t *testing.T) {
	for _, tt := range []struct {
		typeName string
		want     int64
	}{
		{"char", 1},
		{"unsigned short", 2},
		{"volatile unsigned int", 4},
		{"const Vec3*", 8},
		{"MtString&", 8},
		{"Vec3::*", 8},
		{"int[2][3]", 24},
		{"u8[36]", 36},
		{"float[]", 8},
		{"MtString", 8},
		{"long", 8},
		{"size_t", 8},
	} {
		require.Equal(t, tt.want, EstimateSize(tt.typeName), tt.typeName)
	}
}

func TestPragmaPack(t *testing.T) {
	require.Equal(t, "#pragma pack(push, 1)", Info{SuggestedPack: 1}.PragmaPack())
	require.Equal(t, "#pragma pack(push, 4)", Info{SuggestedPack: 4}.PragmaPack())
	require.Empty(t, Info{SuggestedPack: 8}.PragmaPack())
}
