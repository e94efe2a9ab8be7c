package headergen

import (
	"debug/dwarf"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// GenerateNamespace renders an overview header for a namespace DIE:
// forward declarations of its named aggregate children plus a hint for
// requesting each one as a full header.
func (g *Generator) GenerateNamespace(name string, off dwarf.Offset, opts Options) (_ string, err error) {
	children, err := g.idx.ChildrenOf(off)
	if err != nil {
		return "", errors.WithMessagef(err, "namespace %s children", name)
	}

	type nsType struct{ keyword, name string }
	var items []nsType
	for _, child := range children {
		var keyword string
		switch child.Tag {
		case dwarf.TagClassType:
			keyword = "class"
		case dwarf.TagStructType:
			keyword = "struct"
		default:
			continue
		}
		childName, _ := child.Val(dwarf.AttrName).(string)
		if childName == "" {
			continue
		}
		items = append(items, nsType{keyword, childName})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].name < items[j].name })

	guard := guardMacro(name, "_NAMESPACE_H")
	lines := []string{
		"#ifndef " + guard,
		"#define " + guard,
		"",
		"#include <cstdint>",
		"",
		"// Generated from DWARF debug information",
		"// Target namespace: " + name,
		"",
		"// DWARF Debug Information:",
		fmt.Sprintf("// - DIE Offset: 0x%08x", uint64(off)),
	}
	if opts.HasCU {
		lines = append(lines, fmt.Sprintf("// - Source CU: 0x%08x", uint64(opts.CUOffset)))
	}
	lines = append(lines,
		"",
		"// Namespace: "+name,
		fmt.Sprintf("// Contains %d type(s)", len(items)),
		"",
		fmt.Sprintf("namespace %s {", name),
		"",
	)
	if len(items) > 0 {
		lines = append(lines, "// Forward declarations")
		for _, item := range items {
			lines = append(lines, fmt.Sprintf("%s %s;", item.keyword, item.name))
		}
		lines = append(lines, "", "// To generate full headers for these types, run:")
		for _, item := range items {
			lines = append(lines, fmt.Sprintf("//   dwarfclass <elf> %s::%s", name, item.name))
		}
	} else {
		lines = append(lines, "// No classes found in this namespace")
	}
	lines = append(lines,
		"",
		fmt.Sprintf("}  // namespace %s", name),
		"",
		"#endif // "+guard,
		"",
	)
	return strings.Join(lines, "\n"), nil
}

// GenerateNotFound writes a placeholder so batch runs keep moving when
// a symbol is missing from the debug info.
func GenerateNotFound(name string) string {
	guard := guardMacro(name, "_H")
	return strings.Join([]string{
		"#ifndef " + guard,
		"#define " + guard,
		"",
		fmt.Sprintf("// Class '%s' not found in DWARF information", name),
		"// Generated from DWARF debug information",
		"// Generated on: " + time.Now().Format("2006-01-02"),
		"",
		"#endif // " + guard,
		"",
	}, "\n")
}
