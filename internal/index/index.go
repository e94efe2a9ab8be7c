package index

import (
	"debug/dwarf"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/consoledbg/dwarfclass/elf"
)

// Source is the debug-info access boundary the index builds on. *elf.ELF
// satisfies it; tests substitute a synthetic DIE arena.
type Source interface {
	IterCompilationUnits() ([]elf.CompilationUnit, error)
	EntriesInCU(cu elf.CompilationUnit) <-chan *dwarf.Entry
	EntryAt(off dwarf.Offset) (*dwarf.Entry, error)
	ChildrenOf(off dwarf.Offset) ([]*dwarf.Entry, error)
	TypeReference(entry *dwarf.Entry, attr dwarf.Attr) (dwarf.Offset, error)
	FileTable(off dwarf.Offset) ([]*dwarf.LineFile, error)
}

const (
	DefaultEntryCacheSize = 10000
	DefaultTypeCacheSize  = 5000
)

type Options struct {
	EntryCacheSize int
	TypeCacheSize  int
	Cache          *PersistentCache // nil keeps the index purely in-memory
}

// TypeInfo is one resolved type-chain result, cached by chain-head offset.
type TypeInfo struct {
	Name        string
	Terminal    dwarf.Offset
	HasTerminal bool
}

// Service is the lazy symbol index: offset<->symbol maps persisted across
// runs, plus bounded LRU caches for materialized DIEs and resolved type
// display names. Single-owner per run; no internal locking.
type Service struct {
	src   Source
	cache *PersistentCache

	entries   *lru.Cache[dwarf.Offset, *dwarf.Entry]
	typeNames *lru.Cache[dwarf.Offset, TypeInfo]

	stats Stats
}

type Stats struct {
	EntryHits      uint64
	EntryMisses    uint64
	EntryEvictions uint64
	Symbols        int
	TypeNames      int
}

func New(src Source, opts Options) (_ *Service, err error) {
	if opts.EntryCacheSize <= 0 {
		opts.EntryCacheSize = DefaultEntryCacheSize
	}
	if opts.TypeCacheSize <= 0 {
		opts.TypeCacheSize = DefaultTypeCacheSize
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	entries, err := lru.New[dwarf.Offset, *dwarf.Entry](opts.EntryCacheSize)
	if err != nil {
		return
	}
	typeNames, err := lru.New[dwarf.Offset, TypeInfo](opts.TypeCacheSize)
	if err != nil {
		return
	}
	return &Service{
		src:       src,
		cache:     cache,
		entries:   entries,
		typeNames: typeNames,
	}, nil
}

// FindOffset answers from the symbol map only; no scanning.
func (s *Service) FindOffset(name string, kind Kind) (off dwarf.Offset, ok bool) {
	raw, ok := s.cache.Lookup(kind.CacheKey(name))
	if !ok && kind != KindAny {
		raw, ok = s.cache.Lookup(name)
	}
	return dwarf.Offset(raw), ok
}

// ResolveEntry materializes the DIE at off through the bounded entry cache.
func (s *Service) ResolveEntry(off dwarf.Offset) (entry *dwarf.Entry, err error) {
	if entry, ok := s.entries.Get(off); ok {
		s.stats.EntryHits++
		return entry, nil
	}
	s.stats.EntryMisses++
	if entry, err = s.src.EntryAt(off); err != nil {
		return
	}
	if evicted := s.entries.Add(off, entry); evicted {
		s.stats.EntryEvictions++
	}
	return
}

// TargetedSearch scans for a DIE named name whose tag matches kind. A CU
// hint recorded on an earlier run narrows the scan to one unit; otherwise
// every unit is scanned in order. The first match wins and is recorded.
func (s *Service) TargetedSearch(name string, kind Kind) (off dwarf.Offset, ok bool) {
	cus, err := s.src.IterCompilationUnits()
	if err != nil {
		log.Warnf("compilation units unavailable: %v", err)
		return
	}
	cuOff, hinted := s.cache.LookupCU(kind.CacheKey(name))
	if !hinted && kind != KindAny {
		cuOff, hinted = s.cache.LookupCU(name)
	}
	if hinted {
		for _, cu := range cus {
			if uint64(cu.Offset) != cuOff {
				continue
			}
			log.Debugf("targeted search for %q in hinted unit 0x%x", name, cu.Offset)
			if off, ok = s.scanCU(cu, name, kind); ok {
				return
			}
			break
		}
	}
	for _, cu := range cus {
		if off, ok = s.scanCU(cu, name, kind); ok {
			return
		}
	}
	return
}

// LookupOrSearch is the common path: O(1) map hit, else scan and record.
func (s *Service) LookupOrSearch(name string, kind Kind) (off dwarf.Offset, ok bool) {
	if off, ok = s.FindOffset(name, kind); ok {
		return
	}
	return s.TargetedSearch(name, kind)
}

func (s *Service) scanCU(cu elf.CompilationUnit, name string, kind Kind) (off dwarf.Offset, ok bool) {
	entries := s.src.EntriesInCU(cu)
	for entry := range entries {
		if !kind.Matches(entry.Tag) {
			continue
		}
		entryName, _ := entry.Val(dwarf.AttrName).(string)
		if entryName != name {
			continue
		}
		off, ok = entry.Offset, true
		s.record(name, kind, entry.Offset, cu.Offset)
		break
	}
	for range entries {
		// unblock the producer after an early match
	}
	return
}

func (s *Service) record(name string, kind Kind, off dwarf.Offset, cuOff dwarf.Offset) {
	s.cache.Record(kind.CacheKey(name), uint64(off), uint64(cuOff))
	log.Debugf("indexed %s %q at 0x%x (unit 0x%x)", kind, name, off, cuOff)
}

// ChildrenOf and TypeReference pass through to the source so downstream
// components need only the index.
func (s *Service) ChildrenOf(off dwarf.Offset) ([]*dwarf.Entry, error) {
	return s.src.ChildrenOf(off)
}

func (s *Service) TypeReference(entry *dwarf.Entry, attr dwarf.Attr) (dwarf.Offset, error) {
	return s.src.TypeReference(entry, attr)
}

func (s *Service) FileTable(off dwarf.Offset) ([]*dwarf.LineFile, error) {
	return s.src.FileTable(off)
}

// CachedType and StoreType expose the bounded resolved-type cache.
func (s *Service) CachedType(off dwarf.Offset) (TypeInfo, bool) {
	return s.typeNames.Get(off)
}

func (s *Service) StoreType(off dwarf.Offset, info TypeInfo) {
	s.typeNames.Add(off, info)
}

func (s *Service) Stats() Stats {
	stats := s.stats
	stats.Symbols = s.cache.Len()
	stats.TypeNames = s.typeNames.Len()
	return stats
}

// SaveCache persists the symbol maps when dirty.
func (s *Service) SaveCache() error {
	return s.cache.Save()
}
