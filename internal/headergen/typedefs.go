package headergen

import (
	"strings"

	"github.com/consoledbg/dwarfclass/internal/classparse"
	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/internal/typechain"
)

// CollectTypedefs maps every typedef name used by the models' member,
// method and union types to its fully resolved underlying type, ready
// for a typedef block. Names that are neither console aliases nor
// typedefs in the debug info are skipped.
func CollectTypedefs(idx *index.Service, res *typechain.Resolver, models ...*classparse.ClassModel) map[string]string {
	out := map[string]string{}
	for _, model := range models {
		collectModelTypedefs(idx, res, model, out)
	}
	return out
}

func collectModelTypedefs(idx *index.Service, res *typechain.Resolver, model *classparse.ClassModel, out map[string]string) {
	add := func(typeName string) {
		name := baseTypeName(typeName)
		if name == "" {
			return
		}
		if _, done := out[name]; done {
			return
		}
		if _, alias := typechain.PrimitiveTypedefs[name]; !alias {
			if _, found := idx.LookupOrSearch(name, index.KindTypedef); !found {
				return
			}
		}
		underlying := res.ResolveTypedefChain(name)
		if underlying == "" || underlying == name {
			return
		}
		out[name] = underlying
	}

	for _, m := range model.Members {
		add(m.TypeName)
	}
	for _, method := range model.Methods {
		add(method.ReturnType)
		for _, p := range method.Params {
			add(p.TypeName)
		}
	}
	for _, u := range model.Unions {
		for _, m := range u.Members {
			add(m.TypeName)
		}
		for _, nested := range u.Structs {
			collectModelTypedefs(idx, res, nested, out)
		}
	}
	for _, nested := range model.Structs {
		collectModelTypedefs(idx, res, nested, out)
	}
}

// baseTypeName strips qualifiers, pointer and reference marks, and
// array dimensions down to the bare name a typedef lookup wants.
func baseTypeName(typeName string) string {
	name := strings.TrimSpace(typeName)
	name = strings.TrimPrefix(name, "const ")
	name = strings.TrimPrefix(name, "volatile ")
	name = strings.TrimRight(name, "*& ")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}
