package index

import "debug/dwarf"

// Kind classifies what a looked-up symbol is expected to be. Each kind maps
// to the DIE tags a scan may match; the legacy free-form kind strings stay
// valid as serialized cache-key prefixes.
type Kind int

const (
	KindAny Kind = iota
	KindClass
	KindStruct
	KindUnion
	KindEnum
	KindTypedef
	KindBase
	KindNamespace
	KindPrimitive
)

var kindNames = map[Kind]string{
	KindAny:       "any",
	KindClass:     "class",
	KindStruct:    "struct",
	KindUnion:     "union",
	KindEnum:      "enum",
	KindTypedef:   "typedef",
	KindBase:      "base_type",
	KindNamespace: "namespace",
	KindPrimitive: "primitive_type",
}

// kindTags mirrors the legacy kind-to-tag table: "class" covers both
// class_type and structure_type because the PS3 toolchain emits C++ classes
// as structure_type, and "primitive_type" covers typedef plus base_type.
var kindTags = map[Kind][]dwarf.Tag{
	KindClass:     {dwarf.TagClassType, dwarf.TagStructType},
	KindStruct:    {dwarf.TagStructType},
	KindUnion:     {dwarf.TagUnionType},
	KindEnum:      {dwarf.TagEnumerationType},
	KindTypedef:   {dwarf.TagTypedef},
	KindBase:      {dwarf.TagBaseType},
	KindNamespace: {dwarf.TagNamespace},
	KindPrimitive: {dwarf.TagTypedef, dwarf.TagBaseType},
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "any"
}

func ParseKind(name string) (Kind, bool) {
	for kind, known := range kindNames {
		if known == name {
			return kind, true
		}
	}
	return KindAny, false
}

func (k Kind) Matches(tag dwarf.Tag) bool {
	if k == KindAny {
		return true
	}
	for _, known := range kindTags[k] {
		if known == tag {
			return true
		}
	}
	return false
}

// CacheKey is the serialized symbol key: "<kind>:<name>", or the bare name
// for kind-agnostic entries.
func (k Kind) CacheKey(name string) string {
	if k == KindAny {
		return name
	}
	return k.String() + ":" + name
}
