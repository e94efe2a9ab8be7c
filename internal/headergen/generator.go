// Package headergen renders parsed class models back into compilable
// C++ header text: include guards, typedef blocks, metadata comments,
// forward declarations and the class bodies themselves.
package headergen

import (
	"debug/dwarf"
	"fmt"
	"sort"
	"strings"

	"github.com/consoledbg/dwarfclass/internal/classparse"
	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/internal/packing"
)

// Generator renders headers. The index is only consulted for
// namespace overviews; class rendering works from models alone.
type Generator struct {
	idx *index.Service
}

func New(idx *index.Service) *Generator {
	return &Generator{idx: idx}
}

// Options carries the per-request rendering inputs.
type Options struct {
	// Metadata turns the DWARF comment blocks on.
	Metadata bool
	// Typedefs is rendered as a sorted typedef block after the include.
	Typedefs map[string]string
	// ForwardDecls lists external type names to declare, in order.
	ForwardDecls []string
	// CUOffset is the owning compilation unit, when known.
	CUOffset dwarf.Offset
	HasCU    bool
}

// GenerateClass renders one class model as a complete guarded header.
func (g *Generator) GenerateClass(model *classparse.ClassModel, opts Options) string {
	guard := guardMacro(model.Name, "_H")
	lines := []string{
		"#ifndef " + guard,
		"#define " + guard,
		"",
		"#include <cstdint>",
		"",
	}
	lines = append(lines, typedefBlock(opts.Typedefs)...)
	if opts.Metadata {
		lines = append(lines, fileMetadata(model, opts)...)
	}
	lines = append(lines, forwardDeclBlock(opts.ForwardDecls)...)
	lines = append(lines, "")
	lines = append(lines, renderClass(model, opts.Metadata)...)
	lines = append(lines, "", "#endif // "+guard, "")
	return strings.Join(lines, "\n")
}

// GenerateHierarchy renders the inheritance chain base-to-derived plus
// its dependency classes in one self-contained header.
func (g *Generator) GenerateHierarchy(chain, deps []*classparse.ClassModel, target string, opts Options) string {
	guard := guardMacro(target, "_HIERARCHY_H")
	lines := []string{
		"#ifndef " + guard,
		"#define " + guard,
		"",
		"#include <cstdint>",
		"",
	}
	lines = append(lines, typedefBlock(opts.Typedefs)...)
	lines = append(lines, "// Generated complete inheritance hierarchy for: "+target)

	if model := findModel(chain, target); model != nil && opts.Metadata {
		lines = append(lines,
			"",
			"// Target Class: "+target,
			fmt.Sprintf("// - Size: %d bytes", model.ByteSize),
			fmt.Sprintf("// - DIE Offset: 0x%08x", uint64(model.Offset)),
		)
		lines = append(lines, packingSummary(model)...)
		if len(chain) > 1 {
			names := make([]string, 0, len(chain))
			for _, m := range chain {
				names = append(names, m.Name)
			}
			lines = append(lines, "// - Full Inheritance Chain: "+strings.Join(names, " -> "))
		}
	}

	lines = append(lines, forwardDeclBlock(opts.ForwardDecls)...)
	if len(chain) > 0 {
		lines = append(lines, "", "// ========== Inheritance Hierarchy ==========")
		for _, model := range chain {
			lines = append(lines, "")
			lines = append(lines, renderClass(model, opts.Metadata)...)
		}
	}
	if len(deps) > 0 {
		lines = append(lines, "", "// ========== Dependency Classes ==========")
		for _, model := range deps {
			lines = append(lines, "")
			lines = append(lines, renderClass(model, opts.Metadata)...)
		}
	}
	lines = append(lines, "", "#endif // "+guard, "")
	return strings.Join(lines, "\n")
}

func findModel(models []*classparse.ClassModel, name string) *classparse.ClassModel {
	for _, m := range models {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func typedefBlock(typedefs map[string]string) []string {
	if len(typedefs) == 0 {
		return nil
	}
	names := make([]string, 0, len(typedefs))
	for name := range typedefs {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := []string{"// Type definitions from DWARF"}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("typedef %s %s;", typedefs[name], name))
	}
	return append(lines, "")
}

func forwardDeclBlock(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	// class works for structs and unions too; a mismatched class-key
	// still compiles.
	lines := []string{"", "// Forward declarations"}
	for _, name := range names {
		lines = append(lines, "class "+name+";")
	}
	return lines
}

// fileMetadata is the header-level comment block naming the target
// symbol and its DWARF coordinates.
func fileMetadata(model *classparse.ClassModel, opts Options) []string {
	lines := []string{
		"// Generated from DWARF debug information",
		"// Target symbol: " + model.Name,
		"",
		"// DWARF Debug Information:",
		fmt.Sprintf("// - Size: %d bytes", model.ByteSize),
		fmt.Sprintf("// - DIE Offset: 0x%08x", uint64(model.Offset)),
	}
	if opts.HasCU {
		lines = append(lines, fmt.Sprintf("// - Source CU: 0x%08x", uint64(opts.CUOffset)))
	}
	if model.Alignment > 0 {
		lines = append(lines, fmt.Sprintf("// - Alignment: %d bytes", model.Alignment))
	}
	lines = append(lines, packingSummary(model)...)
	if model.DeclFile != "" {
		lines = append(lines, "// - Declaration: "+model.DeclFile)
		if model.DeclLine > 0 {
			lines = append(lines, fmt.Sprintf("// - Line: %d", model.DeclLine))
		}
	}
	if len(model.TemplateParams) > 0 {
		lines = append(lines, "// - Template Parameters: "+strings.Join(model.TemplateParams, ", "))
	}
	if len(model.Bases) > 0 {
		chain := strings.Join(model.Bases, " -> ") + " -> " + model.Name
		lines = append(lines, "// - Direct Inheritance: "+chain)
	}
	return append(lines, "")
}

// packingSummary condenses the layout analysis to the suggestion and
// the padding total; nothing is emitted for memberless shells.
func packingSummary(model *classparse.ClassModel) []string {
	if len(model.InstanceMembers()) == 0 {
		return nil
	}
	return summaryLines(packing.Analyze(model))
}

// packingDetail adds the per-gap breakdown and the pragma hint on top
// of the summary; used in the per-class block where layout lives.
func packingDetail(model *classparse.ClassModel) []string {
	if len(model.InstanceMembers()) == 0 {
		return nil
	}
	info := packing.Analyze(model)
	lines := summaryLines(info)
	for _, gap := range info.Gaps {
		switch {
		case gap.Tail:
			lines = append(lines, fmt.Sprintf("// - Tail padding: %d bytes at offset 0x%x", gap.Size, gap.Offset))
		case gap.After == "start":
			lines = append(lines, fmt.Sprintf("// - Gap: %d bytes before the first member", gap.Size))
		default:
			lines = append(lines, fmt.Sprintf("// - Gap: %d bytes at offset 0x%x, after %s", gap.Size, gap.Offset, gap.After))
		}
	}
	if pragma := info.PragmaPack(); pragma != "" {
		lines = append(lines, "// - Pack hint: "+pragma)
	}
	return lines
}

func summaryLines(info packing.Info) []string {
	lines := []string{fmt.Sprintf("// - Suggested Packing: %d bytes", info.SuggestedPack)}
	if info.TotalPadding > 0 {
		lines = append(lines, fmt.Sprintf("// - Total Padding: %d bytes", info.TotalPadding))
	}
	return lines
}

func renderClass(model *classparse.ClassModel, metadata bool) []string {
	var lines []string
	if metadata {
		lines = append(lines,
			fmt.Sprintf("// %s - DWARF Information:", model.Name),
			fmt.Sprintf("// - Size: %d bytes", model.ByteSize),
			fmt.Sprintf("// - DIE Offset: 0x%08x", uint64(model.Offset)),
		)
		lines = append(lines, packingDetail(model)...)
		if model.DeclFile != "" {
			lines = append(lines, "// - Declaration: "+model.DeclFile)
			if model.DeclLine > 0 {
				lines = append(lines, fmt.Sprintf("//   Line: %d", model.DeclLine))
			}
		}
		if len(model.Bases) > 0 {
			lines = append(lines, "// - Inherits from: "+strings.Join(model.Bases, ", "))
		}
	}

	inheritance := ""
	if len(model.Bases) > 0 {
		inheritance = " : public " + strings.Join(model.Bases, ", public ")
	}
	alignAttr := ""
	if model.Alignment > 1 {
		alignAttr = fmt.Sprintf(" __attribute__((aligned(%d)))", model.Alignment)
		if metadata {
			lines = append(lines, fmt.Sprintf("// - Alignment: %d bytes", model.Alignment))
		}
	}
	lines = append(lines, fmt.Sprintf("class%s %s%s", alignAttr, model.Name, inheritance), "{")

	if len(model.Enums) > 0 {
		lines = append(lines, "public:")
		for _, e := range model.Enums {
			lines = append(lines, renderEnum(e, metadata)...)
		}
	}
	if len(model.Structs) > 0 {
		lines = append(lines, "public:")
		for _, nested := range model.Structs {
			lines = append(lines, renderStruct(nested)...)
		}
	}
	if len(model.Unions) > 0 {
		lines = append(lines, "public:")
		for _, u := range model.Unions {
			lines = append(lines, renderUnion(u)...)
		}
	}

	virtual, regular := splitMethods(model.Methods)
	if len(virtual) > 0 {
		lines = append(lines, "public:")
		lines = append(lines, renderMethods(virtual)...)
	}
	if len(regular) > 0 {
		lines = append(lines, "public:")
		lines = append(lines, renderMethods(regular)...)
	}

	instance := model.InstanceMembers()
	statics := model.StaticMembers()
	if len(instance)+len(statics) > 0 {
		lines = append(lines, "public:")
		for _, m := range instance {
			line := "    " + memberDecl(m) + ";"
			if m.Offset >= 0 {
				line += fmt.Sprintf("  // offset: 0x%x", m.Offset)
			}
			lines = append(lines, line)
		}
		if len(statics) > 0 {
			lines = append(lines, "", "    // Static members")
			for _, m := range statics {
				lines = append(lines, "    "+staticDecl(m)+";")
			}
		}
	}

	lines = append(lines, "};")
	return lines
}

func renderEnum(e classparse.EnumModel, metadata bool) []string {
	var lines []string
	if metadata {
		lines = append(lines, fmt.Sprintf("    // Enum %s (%d bytes)", e.Name, e.ByteSize))
	}
	// an anonymous scoped enum is not legal C++, so those stay unscoped
	if e.Name != "" {
		lines = append(lines, "    enum class "+e.Name)
	} else {
		lines = append(lines, "    enum")
	}
	lines = append(lines, "    {")
	for i, v := range e.Enumerators {
		comma := ","
		if i == len(e.Enumerators)-1 {
			comma = ""
		}
		lines = append(lines, fmt.Sprintf("        %s = %d%s", v.Name, v.Value, comma))
	}
	return append(lines, "    };", "")
}

func renderStruct(nested *classparse.ClassModel) []string {
	name := nested.Name
	if name == "" || name == classparse.UnknownClassName {
		name = "anonymous_struct"
	}
	lines := []string{
		fmt.Sprintf("    // Struct %s (%d bytes)", name, nested.ByteSize),
		"    struct " + name,
		"    {",
	}
	members := make([]classparse.MemberModel, 0, len(nested.Members))
	for _, m := range nested.InstanceMembers() {
		if m.Offset >= 0 {
			members = append(members, m)
		}
	}
	sort.SliceStable(members, func(i, j int) bool { return members[i].Offset < members[j].Offset })
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("        %s;  // offset %d", memberDecl(m), m.Offset))
	}
	return append(lines, "    };", "")
}

func renderUnion(u classparse.UnionModel) []string {
	head := fmt.Sprintf("    // Union %s (%d bytes)", u.Name, u.ByteSize)
	if u.ByteOffset >= 0 {
		head = fmt.Sprintf("    // Union %s (%d bytes, offset %d)", u.Name, u.ByteSize, u.ByteOffset)
	}
	lines := []string{head}
	if u.Name != "" {
		lines = append(lines, "    union "+u.Name)
	} else {
		lines = append(lines, "    union")
	}
	lines = append(lines, "    {")
	for _, nested := range u.Structs {
		lines = append(lines, renderUnionStruct(nested)...)
	}
	for _, m := range u.Members {
		if m.Name == "" {
			continue
		}
		line := "        " + memberDecl(m) + ";"
		if m.Offset >= 0 {
			line += fmt.Sprintf("  // offset %d", m.Offset)
		}
		lines = append(lines, line)
	}
	return append(lines, "    };", "")
}

// renderUnionStruct emits overlay structs inside a union; named ones
// double as an instance so the overlay is addressable.
func renderUnionStruct(nested *classparse.ClassModel) []string {
	named := nested.Name != "" && nested.Name != classparse.UnknownClassName
	var lines []string
	if named {
		lines = append(lines, "        struct "+nested.Name)
	} else {
		lines = append(lines, "        struct")
	}
	lines = append(lines, "        {")
	for _, m := range nested.InstanceMembers() {
		line := "            " + memberDecl(m) + ";"
		if m.Offset >= 0 {
			line += fmt.Sprintf("  // offset %d", m.Offset)
		}
		lines = append(lines, line)
	}
	if named {
		lines = append(lines, fmt.Sprintf("        } %s;", nested.Name))
	} else {
		lines = append(lines, "        };")
	}
	return lines
}

func splitMethods(methods []classparse.MethodModel) (virtual, regular []classparse.MethodModel) {
	for _, m := range methods {
		if m.Virtual {
			virtual = append(virtual, m)
		} else {
			regular = append(regular, m)
		}
	}
	return
}

func renderMethods(methods []classparse.MethodModel) []string {
	var ctors, dtors, operators, rest []classparse.MethodModel
	for _, m := range methods {
		switch {
		case m.Ctor:
			ctors = append(ctors, m)
		case m.Dtor:
			dtors = append(dtors, m)
		case strings.HasPrefix(m.Name, "operator"):
			operators = append(operators, m)
		default:
			rest = append(rest, m)
		}
	}
	var lines []string
	for _, m := range ctors {
		lines = append(lines, fmt.Sprintf("    %s(%s);", m.Name, paramList(m.Params)))
	}
	for _, m := range dtors {
		lines = append(lines, "    "+virtualPrefix(m)+m.Name+"();")
	}
	for _, m := range rest {
		lines = append(lines, fmt.Sprintf("    %s%s %s(%s);", virtualPrefix(m), m.ReturnType, m.Name, paramList(m.Params)))
	}
	for _, m := range operators {
		lines = append(lines, fmt.Sprintf("    %s%s %s(%s);", virtualPrefix(m), m.ReturnType, m.Name, paramList(m.Params)))
	}
	return lines
}

func virtualPrefix(m classparse.MethodModel) string {
	if m.Virtual {
		return "virtual "
	}
	return ""
}

func paramList(params []classparse.ParamModel) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Artificial {
			continue
		}
		if p.Name == "" {
			parts = append(parts, p.TypeName)
			continue
		}
		parts = append(parts, p.TypeName+" "+p.Name)
	}
	return strings.Join(parts, ", ")
}

// memberDecl moves array dimensions from the type onto the declared
// name, which is where C++ wants them.
func memberDecl(m classparse.MemberModel) string {
	if m.Name == "" {
		return m.TypeName
	}
	if base, dims, ok := splitArray(m.TypeName); ok {
		return base + " " + m.Name + dims
	}
	return m.TypeName + " " + m.Name
}

func staticDecl(m classparse.MemberModel) string {
	if m.ConstValue != nil && !strings.HasPrefix(m.TypeName, "const ") {
		m.TypeName = "const " + m.TypeName
	}
	decl := "static " + memberDecl(m)
	if m.ConstValue != nil && !strings.Contains(m.TypeName, "[") {
		decl += fmt.Sprintf(" = %d", *m.ConstValue)
	}
	return decl
}

func splitArray(typeName string) (base, dims string, ok bool) {
	i := strings.IndexByte(typeName, '[')
	if i < 0 || !strings.HasSuffix(typeName, "]") {
		return "", "", false
	}
	return strings.TrimSpace(typeName[:i]), typeName[i:], true
}
