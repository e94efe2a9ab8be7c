package classparse

import (
	"debug/dwarf"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/internal/typechain"
)

// maxNestingDepth bounds recursive parsing of nested aggregates.
const maxNestingDepth = 8

type Parser struct {
	idx *index.Service
	res *typechain.Resolver
}

func New(idx *index.Service, res *typechain.Resolver) *Parser {
	return &Parser{idx: idx, res: res}
}

// ParseClass builds the model for the aggregate DIE at off.
func (p *Parser) ParseClass(off dwarf.Offset) (_ *ClassModel, err error) {
	entry, err := p.idx.ResolveEntry(off)
	if err != nil {
		return nil, errors.WithMessage(err, "resolve class entry")
	}
	switch entry.Tag {
	case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType:
	default:
		return nil, errors.Errorf("entry at 0x%x is %s, not an aggregate", off, entry.Tag)
	}
	return p.parseAggregate(entry, 0), nil
}

func (p *Parser) parseAggregate(entry *dwarf.Entry, depth int) *ClassModel {
	model := &ClassModel{Name: UnknownClassName, Offset: entry.Offset}
	if name, ok := entry.Val(dwarf.AttrName).(string); ok && name != "" {
		model.Name = name
	}
	if size, ok := constValue(entry, dwarf.AttrByteSize); ok {
		model.ByteSize = size
	} else {
		model.ForwardDecl = true
	}
	if align, ok := constValue(entry, dwarf.AttrAlignment); ok {
		model.Alignment = align
	}
	p.declFileLine(entry, model)

	children, err := p.idx.ChildrenOf(entry.Offset)
	if err != nil {
		log.Warnf("cannot read children of %s at 0x%x: %v", model.Name, entry.Offset, err)
		return model
	}

	// Type DIEs of promoted anonymous unions; skipped when the same
	// DIE shows up again as a direct child.
	promoted := map[dwarf.Offset]struct{}{}

	for _, child := range children {
		switch child.Tag {
		case dwarf.TagMember:
			p.parseMember(child, model, promoted, depth)

		case dwarf.TagSubprogram:
			model.Methods = append(model.Methods, p.parseMethod(child, model.Name))

		case dwarf.TagInheritance:
			base, _, _ := p.res.ResolveType(child)
			if base == "" || typechain.IsInternalName(base) {
				log.Debugf("unresolvable base of %s at 0x%x", model.Name, child.Offset)
				continue
			}
			model.Bases = append(model.Bases, base)

		case dwarf.TagEnumerationType:
			model.Enums = append(model.Enums, p.parseEnum(child))

		case dwarf.TagStructType, dwarf.TagClassType:
			if depth >= maxNestingDepth {
				log.Warnf("nested aggregate at 0x%x deeper than %d levels, skipping", child.Offset, maxNestingDepth)
				continue
			}
			model.Structs = append(model.Structs, p.parseAggregate(child, depth+1))

		case dwarf.TagUnionType:
			if _, done := promoted[child.Offset]; done {
				continue
			}
			if depth >= maxNestingDepth {
				continue
			}
			model.Unions = append(model.Unions, p.parseUnion(child, -1, depth))

		case dwarf.TagTypedef:
			name, _ := child.Val(dwarf.AttrName).(string)
			if name == "" {
				continue
			}
			underlying, _, _ := p.res.ResolveType(child)
			model.Typedefs = append(model.Typedefs, TypedefModel{Name: name, Underlying: underlying})

		case dwarf.TagTemplateTypeParameter, dwarf.TagTemplateValueParameter:
			if param := p.templateParam(child); param != "" {
				model.TemplateParams = append(model.TemplateParams, param)
			}

		default:
			log.Debugf("ignoring %s child of %s at 0x%x", child.Tag, model.Name, child.Offset)
		}
	}
	return model
}

// parseMember appends a member to the model, promoting an unnamed
// member whose type is a union into a union model at that offset.
// Unnamed members of non-aggregate type (unnamed bitfields, padding
// artifacts) are dropped.
func (p *Parser) parseMember(child *dwarf.Entry, model *ClassModel, promoted map[dwarf.Offset]struct{}, depth int) {
	name, _ := child.Val(dwarf.AttrName).(string)
	typeName, terminal, hasType := p.res.ResolveType(child)

	if name == "" {
		if !hasType {
			return
		}
		tentry, err := p.idx.ResolveEntry(terminal)
		if err != nil {
			return
		}
		switch tentry.Tag {
		case dwarf.TagUnionType:
			promoted[terminal] = struct{}{}
			model.Unions = append(model.Unions, p.parseUnion(tentry, memberOffset(child), depth))
			return
		case dwarf.TagStructType, dwarf.TagClassType:
			// anonymous struct member, kept with an empty name
		default:
			return
		}
	}

	m := MemberModel{
		Name:       name,
		TypeName:   typeName,
		TypeOffset: terminal,
		HasType:    hasType,
		Offset:     -1,
	}

	external, _ := child.Val(dwarf.AttrExternal).(bool)
	declaration, _ := child.Val(dwarf.AttrDeclaration).(bool)
	if external && declaration {
		m.Static = true
	} else {
		m.Offset = memberOffset(child)
	}
	if value, ok := constValue(child, dwarf.AttrConstValue); ok {
		m.ConstValue = &value
	}

	// The compiler-generated vtable pointer often references vtable
	// machinery stripped from the binary.
	if strings.HasPrefix(name, "_vptr") && m.TypeName == typechain.UnknownTypeName {
		m.TypeName = "void*"
	}

	model.Members = append(model.Members, m)
}

func (p *Parser) parseMethod(child *dwarf.Entry, className string) MethodModel {
	m := MethodModel{}
	m.Name, _ = child.Val(dwarf.AttrName).(string)
	m.ReturnType, m.ReturnOffset, m.HasReturn = p.res.ResolveType(child)
	if virt, ok := constValue(child, dwarf.AttrVirtuality); ok && virt != 0 {
		m.Virtual = true
	}
	m.Ctor = m.Name != "" && m.Name == className
	m.Dtor = strings.HasPrefix(m.Name, "~")

	params, err := p.idx.ChildrenOf(child.Offset)
	if err != nil {
		log.Debugf("cannot read parameters of %s at 0x%x: %v", m.Name, child.Offset, err)
		return m
	}
	for _, param := range params {
		switch param.Tag {
		case dwarf.TagFormalParameter:
			pm := ParamModel{}
			pm.Name, _ = param.Val(dwarf.AttrName).(string)
			pm.TypeName, pm.TypeOffset, pm.HasType = p.res.ResolveType(param)
			pm.Artificial, _ = param.Val(dwarf.AttrArtificial).(bool)
			m.Params = append(m.Params, pm)
		case dwarf.TagUnspecifiedParameters:
			m.Params = append(m.Params, ParamModel{TypeName: "..."})
		}
	}
	return m
}

func (p *Parser) parseEnum(entry *dwarf.Entry) EnumModel {
	e := EnumModel{Offset: entry.Offset}
	e.Name, _ = entry.Val(dwarf.AttrName).(string)
	if size, ok := constValue(entry, dwarf.AttrByteSize); ok {
		e.ByteSize = size
	}
	children, err := p.idx.ChildrenOf(entry.Offset)
	if err != nil {
		log.Debugf("cannot read enumerators at 0x%x: %v", entry.Offset, err)
		return e
	}
	for _, child := range children {
		if child.Tag != dwarf.TagEnumerator {
			continue
		}
		name, _ := child.Val(dwarf.AttrName).(string)
		value, _ := constValue(child, dwarf.AttrConstValue)
		e.Enumerators = append(e.Enumerators, Enumerator{Name: name, Value: value})
	}
	return e
}

// parseUnion handles both direct union children (byteOffset -1) and
// promoted anonymous-union members. Overlay structs inside the union
// are parsed as nested aggregates.
func (p *Parser) parseUnion(entry *dwarf.Entry, byteOffset int64, depth int) UnionModel {
	u := UnionModel{Offset: entry.Offset, ByteOffset: byteOffset}
	u.Name, _ = entry.Val(dwarf.AttrName).(string)
	if size, ok := constValue(entry, dwarf.AttrByteSize); ok {
		u.ByteSize = size
	}
	children, err := p.idx.ChildrenOf(entry.Offset)
	if err != nil {
		log.Debugf("cannot read union members at 0x%x: %v", entry.Offset, err)
		return u
	}
	for _, child := range children {
		switch child.Tag {
		case dwarf.TagMember:
			name, _ := child.Val(dwarf.AttrName).(string)
			typeName, terminal, hasType := p.res.ResolveType(child)
			u.Members = append(u.Members, MemberModel{
				Name:       name,
				TypeName:   typeName,
				TypeOffset: terminal,
				HasType:    hasType,
				Offset:     memberOffset(child),
			})
		case dwarf.TagStructType, dwarf.TagClassType:
			if depth >= maxNestingDepth {
				continue
			}
			u.Structs = append(u.Structs, p.parseAggregate(child, depth+1))
		}
	}
	return u
}

func (p *Parser) templateParam(child *dwarf.Entry) string {
	name, _ := child.Val(dwarf.AttrName).(string)
	if child.Tag == dwarf.TagTemplateValueParameter {
		value, ok := constValue(child, dwarf.AttrConstValue)
		if name == "" || !ok {
			return name
		}
		return fmt.Sprintf("%s = %d", name, value)
	}
	bound, _, _ := p.res.ResolveType(child)
	if name == "" {
		return bound
	}
	if bound == typechain.VoidName || bound == typechain.UnknownTypeName {
		return name
	}
	return fmt.Sprintf("%s = %s", name, bound)
}

func (p *Parser) declFileLine(entry *dwarf.Entry, model *ClassModel) {
	fileIdx, ok := constValue(entry, dwarf.AttrDeclFile)
	if !ok {
		return
	}
	if line, ok := constValue(entry, dwarf.AttrDeclLine); ok {
		model.DeclLine = line
	}
	files, err := p.idx.FileTable(entry.Offset)
	if err != nil {
		log.Debugf("no line table for 0x%x: %v", entry.Offset, err)
		return
	}
	if fileIdx > 0 && fileIdx < int64(len(files)) && files[fileIdx] != nil {
		model.DeclFile = files[fileIdx].Name
	}
}

// constValue reads an integer-classed attribute regardless of the
// signedness the producer picked.
func constValue(entry *dwarf.Entry, attr dwarf.Attr) (int64, bool) {
	switch v := entry.Val(attr).(type) {
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	}
	return 0, false
}
