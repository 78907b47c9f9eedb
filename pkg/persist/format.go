package persist

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format names.
const (
	FormatROM  = "rom-olc"
	FormatJSON = "json"
)

// Format describes one on-disk representation of a catalog whose in-memory
// form is C. Load decodes into dst; Save encodes src. LoadSection and
// SaveSection are nil for formats without owner-scoped sections.
type Format[C any] struct {
	Name        string
	Load        func(r Reader, filename string, dst C) Result
	Save        func(w Writer, filename string, src C) Result
	LoadSection func(r Reader, owner string, dst C) Result
	SaveSection func(w Writer, owner string, src C) Result
}

// Registry maps format names to descriptors for one catalog.
type Registry[C any] struct {
	catalog  string
	formats  map[string]*Format[C]
	fallback string
}

// NewRegistry creates an empty registry. fallback names the format chosen when
// no extension rule applies.
func NewRegistry[C any](catalog, fallback string) *Registry[C] {
	return &Registry[C]{
		catalog:  catalog,
		formats:  make(map[string]*Format[C]),
		fallback: fallback,
	}
}

// Catalog returns the catalog name the registry serves.
func (r *Registry[C]) Catalog() string { return r.catalog }

// Register adds or replaces a format.
func (r *Registry[C]) Register(f *Format[C]) {
	r.formats[f.Name] = f
}

// Lookup returns the named format.
func (r *Registry[C]) Lookup(name string) (*Format[C], bool) {
	f, ok := r.formats[name]
	return f, ok
}

// Names returns the registered format names, sorted.
func (r *Registry[C]) Names() []string {
	names := make([]string, 0, len(r.formats))
	for n := range r.formats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FormatForFilename is the extension policy: ".json" selects the JSON format,
// everything else the legacy text format.
func FormatForFilename(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return FormatJSON
	}
	return FormatROM
}

// Select picks the descriptor for filename, falling back to the registry's
// default when the preferred format is not registered.
func (r *Registry[C]) Select(filename string) *Format[C] {
	if f, ok := r.formats[FormatForFilename(filename)]; ok {
		return f
	}
	return r.formats[r.fallback]
}

// Sectioned returns the format used for owner-scoped section load/save. Only
// the legacy text format has sections.
func (r *Registry[C]) Sectioned() (*Format[C], bool) {
	f, ok := r.formats[FormatROM]
	if !ok || f.LoadSection == nil || f.SaveSection == nil {
		return nil, false
	}
	return f, true
}
