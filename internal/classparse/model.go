// Package classparse turns class, struct, union and enum DIEs into
// structured models the downstream analyzers and the header generator
// work from.
package classparse

import "debug/dwarf"

// UnknownClassName is used when a class entry carries no name.
const UnknownClassName = "unknown_class"

// ClassModel is one parsed class or struct. ByteSize 0 together with
// ForwardDecl means the entry declared the type without defining it.
type ClassModel struct {
	Name        string
	ByteSize    int64
	Alignment   int64
	Offset      dwarf.Offset
	DeclFile    string
	DeclLine    int64
	ForwardDecl bool

	Bases          []string
	Members        []MemberModel
	Methods        []MethodModel
	Enums          []EnumModel
	Structs        []*ClassModel
	Unions         []UnionModel
	Typedefs       []TypedefModel
	TemplateParams []string
}

// MemberModel is one data member. Offset is -1 when the location could
// not be decoded; static members never have one.
type MemberModel struct {
	Name       string
	TypeName   string
	TypeOffset dwarf.Offset
	HasType    bool
	Offset     int64
	Static     bool
	ConstValue *int64
}

type MethodModel struct {
	Name         string
	ReturnType   string
	ReturnOffset dwarf.Offset
	HasReturn    bool
	Params       []ParamModel
	Virtual      bool
	Ctor         bool
	Dtor         bool
}

type ParamModel struct {
	Name       string
	TypeName   string
	TypeOffset dwarf.Offset
	HasType    bool
	Artificial bool
}

type EnumModel struct {
	Name        string
	ByteSize    int64
	Offset      dwarf.Offset
	Enumerators []Enumerator
}

// Enumerator order follows the declaration order in the binary.
type Enumerator struct {
	Name  string
	Value int64
}

// UnionModel covers both named union children and anonymous unions
// promoted from unnamed members. ByteOffset is the promoted member's
// location within the enclosing class, -1 when unknown.
type UnionModel struct {
	Name       string
	ByteSize   int64
	Offset     dwarf.Offset
	ByteOffset int64
	Members    []MemberModel
	Structs    []*ClassModel
}

// TypedefModel is a typedef declared inside the class body.
type TypedefModel struct {
	Name       string
	Underlying string
}

// InstanceMembers returns the non-static members in declaration order.
func (c *ClassModel) InstanceMembers() []MemberModel {
	members := make([]MemberModel, 0, len(c.Members))
	for _, m := range c.Members {
		if !m.Static {
			members = append(members, m)
		}
	}
	return members
}

// StaticMembers returns the static members in declaration order.
func (c *ClassModel) StaticMembers() []MemberModel {
	members := make([]MemberModel, 0)
	for _, m := range c.Members {
		if m.Static {
			members = append(members, m)
		}
	}
	return members
}
