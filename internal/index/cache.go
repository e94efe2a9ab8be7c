package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	SchemaVersion = "2.0"

	// content hash covers this much of the binary plus its mtime
	hashPrefixLen = 64 * 1024
)

// cacheDocument is the on-disk schema. Offsets serialize as decimal-string
// keys where they act as map keys, plain numbers where they are values.
type cacheDocument struct {
	SchemaVersion     string              `json:"schema_version"`
	ElfHash           string              `json:"elf_hash"`
	Created           string              `json:"created"`
	LastUpdated       string              `json:"last_updated"`
	SymbolToOffset    map[string]uint64   `json:"symbol_to_offset"`
	OffsetToSymbol    map[string]string   `json:"offset_to_symbol"`
	SymbolToCUOffset  map[string]uint64   `json:"symbol_to_cu_offset"`
	CUOffsetToSymbols map[string][]string `json:"cu_offset_to_symbols"`
}

func newDocument(hash string) cacheDocument {
	now := time.Now().UTC().Format(time.RFC3339)
	return cacheDocument{
		SchemaVersion:     SchemaVersion,
		ElfHash:           hash,
		Created:           now,
		LastUpdated:       now,
		SymbolToOffset:    map[string]uint64{},
		OffsetToSymbol:    map[string]string{},
		SymbolToCUOffset:  map[string]uint64{},
		CUOffsetToSymbols: map[string][]string{},
	}
}

// PersistentCache is the symbol map document for one binary, staleness
// checked against a content hash of that binary. A cache constructed with
// an empty path never touches the filesystem.
type PersistentCache struct {
	fs      afero.Fs
	path    string
	binPath string
	doc     cacheDocument
	dirty   bool
}

func NewPersistentCache(fs afero.Fs, dir, binPath string) *PersistentCache {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	stem := strings.TrimSuffix(filepath.Base(binPath), filepath.Ext(binPath))
	return &PersistentCache{
		fs:      fs,
		path:    filepath.Join(dir, stem+"_dwarf_cache.json"),
		binPath: binPath,
		doc:     newDocument(""),
	}
}

func NewMemoryCache() *PersistentCache {
	return &PersistentCache{fs: afero.NewMemMapFs(), doc: newDocument("")}
}

// DefaultCacheDir is the per-user cache folder for this tool.
func DefaultCacheDir() string {
	return configdir.New("", "dwarfclass").QueryCacheFolder().Path
}

func (c *PersistentCache) Path() string {
	return c.path
}

// Load reads and validates the document. A missing or stale file starts
// fresh; a structurally self-contradicting one is rejected.
func (c *PersistentCache) Load() (err error) {
	hash := ""
	if c.binPath != "" {
		if hash, err = contentHash(c.fs, c.binPath); err != nil {
			return
		}
		c.doc.ElfHash = hash
	}
	if c.path == "" {
		return
	}
	raw, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return
	}
	doc := cacheDocument{}
	if err = json.Unmarshal(raw, &doc); err != nil {
		log.Warnf("unreadable symbol cache %s, starting fresh: %v", c.path, err)
		return nil
	}
	if err = migrate(&doc); err != nil {
		return
	}
	if doc.ElfHash != hash {
		log.Infof("symbol cache %s is stale, starting fresh", c.path)
		return nil
	}
	c.doc = doc
	c.doc.ElfHash = hash
	if doc.SchemaVersion != SchemaVersion {
		c.doc.SchemaVersion = SchemaVersion
		c.dirty = true
	}
	if err = c.validate(); err != nil {
		// A self-contradicting document must not be read through.
		c.doc = newDocument(hash)
		return
	}
	log.Debugf("loaded %d symbols from %s", len(c.doc.SymbolToOffset), c.path)
	return
}

// migrate lifts older schemas additively: absent maps appear empty, absent
// reverse maps are rebuilt from the forward ones. Newer schemas than this
// build understands are rejected.
func migrate(doc *cacheDocument) error {
	switch doc.SchemaVersion {
	case SchemaVersion:
	case "1.0", "1.1":
		log.Infof("migrating symbol cache schema %s -> %s", doc.SchemaVersion, SchemaVersion)
	default:
		return errors.Wrap(UnsupportedSchemaError, doc.SchemaVersion)
	}
	if doc.SymbolToOffset == nil {
		doc.SymbolToOffset = map[string]uint64{}
	}
	if doc.SymbolToCUOffset == nil {
		doc.SymbolToCUOffset = map[string]uint64{}
	}
	if doc.OffsetToSymbol == nil {
		doc.OffsetToSymbol = map[string]string{}
		for sym, off := range doc.SymbolToOffset {
			doc.OffsetToSymbol[strconv.FormatUint(off, 10)] = sym
		}
	}
	if doc.CUOffsetToSymbols == nil {
		doc.CUOffsetToSymbols = map[string][]string{}
		for sym, cuOff := range doc.SymbolToCUOffset {
			key := strconv.FormatUint(cuOff, 10)
			doc.CUOffsetToSymbols[key] = append(doc.CUOffsetToSymbols[key], sym)
		}
	}
	return nil
}

// validate enforces that the per-unit symbol lists invert the authoritative
// symbol-to-unit map. Lists that merely disagree (duplicate keys collapsed
// by serialization, stale membership) are rebuilt; lists naming symbols the
// authoritative map does not know cannot be rebuilt without losing entries,
// so they fail loudly.
func (c *PersistentCache) validate() error {
	for cuKey, syms := range c.doc.CUOffsetToSymbols {
		for _, sym := range syms {
			if _, ok := c.doc.SymbolToCUOffset[sym]; !ok {
				return errors.Wrapf(CacheCorruptedError, "unit %s lists unmapped symbol %q", cuKey, sym)
			}
		}
	}
	rebuilt := map[string][]string{}
	for sym, cuOff := range c.doc.SymbolToCUOffset {
		key := strconv.FormatUint(cuOff, 10)
		rebuilt[key] = append(rebuilt[key], sym)
	}
	for _, syms := range rebuilt {
		sort.Strings(syms)
	}
	if !unitListsEqual(c.doc.CUOffsetToSymbols, rebuilt) {
		log.Warnf("unit symbol lists inconsistent in %s, rebuilding", c.path)
		c.doc.CUOffsetToSymbols = rebuilt
		c.dirty = true
	}
	return nil
}

func unitListsEqual(stored, rebuilt map[string][]string) bool {
	if len(stored) != len(rebuilt) {
		return false
	}
	for key, want := range rebuilt {
		got := append([]string(nil), stored[key]...)
		sort.Strings(got)
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
	}
	return true
}

// Save writes the document if anything changed since Load.
func (c *PersistentCache) Save() (err error) {
	if !c.dirty || c.path == "" {
		return
	}
	c.doc.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return
	}
	if err = c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return
	}
	tmp := c.path + ".tmp"
	if err = afero.WriteFile(c.fs, tmp, raw, 0o644); err != nil {
		return
	}
	if err = c.fs.Rename(tmp, c.path); err != nil {
		return
	}
	c.dirty = false
	log.Debugf("saved %d symbols to %s", len(c.doc.SymbolToOffset), c.path)
	return
}

func (c *PersistentCache) Lookup(key string) (off uint64, ok bool) {
	off, ok = c.doc.SymbolToOffset[key]
	return
}

func (c *PersistentCache) LookupCU(key string) (cuOff uint64, ok bool) {
	cuOff, ok = c.doc.SymbolToCUOffset[key]
	return
}

// Record stores a discovered symbol in all four maps. First occurrence wins.
func (c *PersistentCache) Record(key string, off, cuOff uint64) {
	if _, ok := c.doc.SymbolToOffset[key]; ok {
		return
	}
	c.doc.SymbolToOffset[key] = off
	c.doc.OffsetToSymbol[strconv.FormatUint(off, 10)] = key
	c.doc.SymbolToCUOffset[key] = cuOff
	cuKey := strconv.FormatUint(cuOff, 10)
	c.doc.CUOffsetToSymbols[cuKey] = append(c.doc.CUOffsetToSymbols[cuKey], key)
	sort.Strings(c.doc.CUOffsetToSymbols[cuKey])
	c.dirty = true
}

func (c *PersistentCache) Len() int {
	return len(c.doc.SymbolToOffset)
}

func (c *PersistentCache) Dirty() bool {
	return c.dirty
}

func contentHash(fs afero.Fs, path string) (hash string, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	buf := make([]byte, hashPrefixLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return
	}
	st, err := fs.Stat(path)
	if err != nil {
		return
	}
	digest := xxhash.New()
	digest.Write(buf[:n])
	return fmt.Sprintf("%016x-%x", digest.Sum64(), st.ModTime().Unix()), nil
}
