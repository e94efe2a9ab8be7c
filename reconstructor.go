package main

import (
	"debug/dwarf"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/consoledbg/dwarfclass/elf"
	"github.com/consoledbg/dwarfclass/internal/classparse"
	"github.com/consoledbg/dwarfclass/internal/headergen"
	"github.com/consoledbg/dwarfclass/internal/hierarchy"
	"github.com/consoledbg/dwarfclass/internal/index"
	"github.com/consoledbg/dwarfclass/internal/typechain"
)

type Options struct {
	OutputDir      string
	FullHierarchy  bool
	CacheDir       string
	NoCache        bool
	EntryCacheSize int
	TypeCacheSize  int
}

// binary is what the reconstructor needs from an opened ELF beyond the
// index source. *elf.ELF satisfies it.
type binary interface {
	index.Source
	CUForOffset(off dwarf.Offset) (elf.CompilationUnit, bool)
}

// Result is one symbol's outcome, rendered into the summary table.
type Result struct {
	Symbol      string
	Path        string
	Size        int
	Placeholder bool
	Err         error
}

type Reconstructor struct {
	bin  binary
	fs   afero.Fs
	opts Options

	idx    *index.Service
	res    *typechain.Resolver
	parser *classparse.Parser
	hier   *hierarchy.Builder
	gen    *headergen.Generator
}

func NewReconstructor(path string, opts Options) (_ *Reconstructor, err error) {
	e, err := elf.New(path)
	if err != nil {
		return
	}
	logBinaryInfo(e, path)

	fs := afero.NewOsFs()
	var cache *index.PersistentCache
	if !opts.NoCache {
		cache = index.NewPersistentCache(fs, opts.CacheDir, path)
		if err = cache.Load(); err != nil {
			err = errors.WithMessage(err, "symbol cache")
			return
		}
	}
	return newReconstructor(e, fs, cache, opts)
}

func newReconstructor(bin binary, fs afero.Fs, cache *index.PersistentCache, opts Options) (_ *Reconstructor, err error) {
	idx, err := index.New(bin, index.Options{
		EntryCacheSize: opts.EntryCacheSize,
		TypeCacheSize:  opts.TypeCacheSize,
		Cache:          cache,
	})
	if err != nil {
		return
	}
	res := typechain.New(idx)
	parser := classparse.New(idx, res)
	return &Reconstructor{
		bin:    bin,
		fs:     fs,
		opts:   opts,
		idx:    idx,
		res:    res,
		parser: parser,
		hier:   hierarchy.New(idx, parser),
		gen:    headergen.New(idx),
	}, nil
}

// Run generates one header per symbol, keeps going past individual
// failures, and fails only when not a single symbol produced output.
func (r *Reconstructor) Run(symbols []string) (err error) {
	if err = r.fs.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return
	}

	results := make([]Result, 0, len(symbols))
	succeeded := 0
	for i, symbol := range symbols {
		log.Infof("[%d/%d] processing %s", i+1, len(symbols), symbol)
		result := r.reconstruct(symbol)
		if result.Err == nil {
			succeeded++
			log.Infof("generated %s (%d bytes)", result.Path, result.Size)
			if err := r.idx.SaveCache(); err != nil {
				log.Warnf("symbol cache not saved: %v", err)
			}
		} else {
			log.Errorf("%s failed: %v", symbol, result.Err)
		}
		results = append(results, result)
	}
	// Discoveries made during failed runs are still worth keeping.
	if err := r.idx.SaveCache(); err != nil {
		log.Warnf("symbol cache not saved: %v", err)
	}
	printSummary(results)

	stats := r.idx.Stats()
	log.Debugf("index: %d symbols, %d type names, entry cache %d hits / %d misses / %d evictions",
		stats.Symbols, stats.TypeNames, stats.EntryHits, stats.EntryMisses, stats.EntryEvictions)

	if succeeded == 0 {
		return errors.Errorf("all %d symbols failed", len(symbols))
	}
	return nil
}

func (r *Reconstructor) reconstruct(symbol string) (result Result) {
	result.Symbol = symbol
	text, placeholder, err := r.generate(symbol)
	if err != nil {
		result.Err = err
		return
	}
	path := filepath.Join(r.opts.OutputDir, headergen.HeaderFileName(symbol, ""))
	if err := afero.WriteFile(r.fs, path, []byte(text), 0o644); err != nil {
		result.Err = errors.WithMessage(err, symbol)
		return
	}
	result.Path = path
	result.Size = len(text)
	result.Placeholder = placeholder
	return
}

// generate renders the header text for one symbol. Misses produce a
// placeholder header instead of an error so batch runs keep going.
func (r *Reconstructor) generate(symbol string) (text string, placeholder bool, err error) {
	entry, ok := r.locate(symbol)
	if !ok {
		log.Warnf("%s not found in debug info, writing a placeholder", symbol)
		return headergen.GenerateNotFound(symbol), true, nil
	}

	if entry.Tag == dwarf.TagNamespace {
		log.Infof("%s is a namespace, generating a namespace overview", symbol)
		text, err = r.gen.GenerateNamespace(symbol, entry.Offset, r.renderOptions(entry.Offset))
		return text, false, err
	}
	if entry.Tag == dwarf.TagTypedef {
		if entry = r.typedefTarget(symbol, entry); entry == nil {
			return headergen.GenerateNotFound(symbol), true, nil
		}
	}
	if !isAggregate(entry.Tag) {
		log.Warnf("%s is a %s, not a class, writing a placeholder", symbol, entry.Tag)
		return headergen.GenerateNotFound(symbol), true, nil
	}

	if r.opts.FullHierarchy {
		return r.generateHierarchy(symbol, entry)
	}
	text, err = r.generateSingle(entry)
	return text, false, err
}

// locate finds the DIE for symbol the way the index orders searches:
// class and struct tags first, then any tag. Both lookups hit the
// persistent cache before scanning.
func (r *Reconstructor) locate(symbol string) (*dwarf.Entry, bool) {
	for _, kind := range []index.Kind{index.KindClass, index.KindAny} {
		off, found := r.idx.LookupOrSearch(symbol, kind)
		if !found {
			continue
		}
		entry, err := r.idx.ResolveEntry(off)
		if err != nil {
			log.Warnf("recorded offset 0x%x for %s is unreadable: %v", off, symbol, err)
			continue
		}
		return entry, true
	}
	return nil, false
}

// typedefTarget follows an alias to the aggregate it names. Aliases of
// primitives have no class body to render.
func (r *Reconstructor) typedefTarget(symbol string, entry *dwarf.Entry) *dwarf.Entry {
	display, terminal, ok := r.res.ResolveTypeAt(entry.Offset)
	if !ok {
		return nil
	}
	target, err := r.idx.ResolveEntry(terminal)
	if err != nil || !isAggregate(target.Tag) {
		return nil
	}
	log.Infof("%s is a typedef, generating the underlying %s", symbol, display)
	return target
}

func (r *Reconstructor) generateSingle(entry *dwarf.Entry) (text string, err error) {
	model, err := r.parser.ParseClass(entry.Offset)
	if err != nil {
		return
	}
	opts := r.renderOptions(entry.Offset)
	opts.Typedefs = headergen.CollectTypedefs(r.idx, r.res, model)
	opts.ForwardDecls = r.hier.ForwardDeclarations(model)
	return r.gen.GenerateClass(model, opts), nil
}

func (r *Reconstructor) generateHierarchy(symbol string, entry *dwarf.Entry) (text string, placeholder bool, err error) {
	name, _ := entry.Val(dwarf.AttrName).(string)
	if name == "" {
		name = symbol
	}
	chain, deps, err := r.hier.BuildFullHierarchy(name)
	if errors.Is(err, index.SymbolNotFoundError) {
		// Unions carry no inheritance chain; render the plain header.
		text, err = r.generateSingle(entry)
		return text, false, err
	}
	if err != nil {
		return
	}
	all := append(append([]*classparse.ClassModel{}, chain...), deps...)
	opts := r.renderOptions(entry.Offset)
	opts.Typedefs = headergen.CollectTypedefs(r.idx, r.res, all...)
	opts.ForwardDecls = r.hier.ForwardDeclarations(all...)
	return r.gen.GenerateHierarchy(chain, deps, name, opts), false, nil
}

// renderOptions seeds rendering options with the owning compilation
// unit, when the offset falls inside a known one.
func (r *Reconstructor) renderOptions(off dwarf.Offset) headergen.Options {
	opts := headergen.Options{Metadata: true}
	if cu, ok := r.bin.CUForOffset(off); ok {
		opts.CUOffset = cu.Offset
		opts.HasCU = true
	}
	return opts
}

func isAggregate(tag dwarf.Tag) bool {
	switch tag {
	case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType:
		return true
	}
	return false
}
