package hierarchy

import (
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/consoledbg/dwarfclass/internal/classparse"
	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/internal/typechain"
)

// MaxDepth bounds both the inheritance chain and the dependency
// recursion of the full-hierarchy variant.
const MaxDepth = 10

// Aggregates this small ride along in full-hierarchy output; anything
// bigger gets a forward declaration instead.
const (
	smallTypeMaxSize    = 64
	smallTypeMaxMembers = 10
)

// BuildHierarchy parses name and its single-inheritance chain, output
// ordered root-to-target so bases precede derivatives.
func (b *Builder) BuildHierarchy(name string) (_ []*classparse.ClassModel, err error) {
	off, ok := b.idx.LookupOrSearch(name, index.KindClass)
	if !ok {
		return nil, errors.WithMessagef(index.SymbolNotFoundError, "class %q", name)
	}

	var chain []*classparse.ClassModel
	visited := map[string]struct{}{}
	for {
		model, err := b.parser.ParseClass(off)
		if err != nil {
			if len(chain) == 0 {
				return nil, err
			}
			log.Warnf("stopping hierarchy walk: %v", err)
			break
		}
		if _, cyc := visited[model.Name]; cyc {
			log.Warnf("inheritance cycle at %s, stopping", model.Name)
			break
		}
		visited[model.Name] = struct{}{}
		chain = append(chain, model)
		if len(chain) >= MaxDepth {
			log.Warnf("inheritance chain of %s longer than %d, stopping", name, MaxDepth)
			break
		}
		if len(model.Bases) == 0 {
			break
		}
		baseOff, ok := b.idx.LookupOrSearch(model.Bases[0], index.KindClass)
		if !ok {
			log.Debugf("base %s of %s not found", model.Bases[0], model.Name)
			break
		}
		off = baseOff
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// BuildFullHierarchy is BuildHierarchy plus the small aggregate types
// hierarchy members reference, returned as a separate name-sorted list
// so a single file can define everything it needs.
func (b *Builder) BuildFullHierarchy(name string) (chain, deps []*classparse.ClassModel, err error) {
	chain, err = b.BuildHierarchy(name)
	if err != nil {
		return nil, nil, err
	}

	emitted := map[string]struct{}{}
	for _, model := range chain {
		emitted[model.Name] = struct{}{}
	}

	for _, model := range chain {
		deps = append(deps, b.smallDependencies(model, emitted, 0)...)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return chain, deps, nil
}

func (b *Builder) smallDependencies(model *classparse.ClassModel, emitted map[string]struct{}, depth int) []*classparse.ClassModel {
	if depth >= MaxDepth {
		return nil
	}
	var out []*classparse.ClassModel
	for _, off := range b.ExtractDependencies(model) {
		dep, err := b.parser.ParseClass(off)
		if err != nil {
			log.Debugf("skipping dependency at 0x%x: %v", off, err)
			continue
		}
		if _, done := emitted[dep.Name]; done {
			continue
		}
		if dep.Name == classparse.UnknownClassName || typechain.IsInternalName(dep.Name) {
			continue
		}
		if dep.ForwardDecl || dep.ByteSize > smallTypeMaxSize || len(dep.Members) > smallTypeMaxMembers {
			continue
		}
		emitted[dep.Name] = struct{}{}
		out = append(out, b.smallDependencies(dep, emitted, depth+1)...)
		out = append(out, dep)
	}
	return out
}
