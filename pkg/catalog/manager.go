package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crystal-mush/gorom/pkg/boltstore"
	"github.com/crystal-mush/gorom/pkg/fileguard"
	"github.com/crystal-mush/gorom/pkg/flatfile"
	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/journal"
	"github.com/crystal-mush/gorom/pkg/loot"
	"github.com/crystal-mush/gorom/pkg/persist"
)

// Recorder receives one entry per persistence operation.
type Recorder interface {
	Record(e journal.Entry) error
}

// Config selects where catalogs live and which formats are available.
type Config struct {
	DataDir string
	// Files overrides Kind.DefaultFile per catalog.
	Files map[Kind]string
	// JSON registers the JSON format for every catalog.
	JSON bool
}

// Manager loads and saves the world catalogs held in Catalogs.
type Manager struct {
	cfg      Config
	Catalogs *gamedb.Catalogs
	Guard    *fileguard.Guard
	Journal  Recorder
	// OnResult is called after every operation, e.g. to count results.
	OnResult func(catalog, op string, res persist.Result)

	bindings map[Kind]binder
	lootReg  *persist.Registry[*loot.DB]
}

// New creates a manager over cats. Files are opened through guard.
func New(cfg Config, cats *gamedb.Catalogs, guard *fileguard.Guard) *Manager {
	if cats == nil {
		cats = gamedb.NewCatalogs()
	}
	return &Manager{
		cfg:      cfg,
		Catalogs: cats,
		Guard:    guard,
		bindings: newBindings(cfg.JSON),
		lootReg:  LootRegistry(cfg.JSON),
	}
}

// File is the catalog's configured filename, relative to the data directory.
func (m *Manager) File(kind Kind) string {
	if f, ok := m.cfg.Files[kind]; ok && f != "" {
		return f
	}
	return kind.DefaultFile()
}

// Path resolves a catalog's file against the data directory.
func (m *Manager) Path(kind Kind) string { return m.resolve(m.File(kind)) }

func (m *Manager) resolve(name string) string {
	if filepath.IsAbs(name) || m.cfg.DataDir == "" {
		return name
	}
	return filepath.Join(m.cfg.DataDir, name)
}

// Exists reports whether the catalog's file is present.
func (m *Manager) Exists(kind Kind) bool {
	_, err := os.Stat(m.Path(kind))
	return err == nil
}

// Formats lists the formats registered for kind.
func (m *Manager) Formats(kind Kind) []string {
	b, ok := m.bindings[kind]
	if !ok {
		return nil
	}
	return b.formats()
}

func (m *Manager) binder(kind Kind) (binder, persist.Result) {
	b, ok := m.bindings[kind]
	if !ok {
		return nil, persist.InternalErr("unknown catalog %d", int(kind))
	}
	return b, persist.OK()
}

func (m *Manager) report(catalog, op, format, path string, res persist.Result, sum string) {
	if !res.IsOK() {
		log.Printf("catalog: %s %s %s: %s", op, catalog, path, res)
	}
	if m.Journal != nil {
		err := m.Journal.Record(journal.Entry{
			Catalog:  catalog,
			Op:       op,
			Format:   format,
			Path:     path,
			Status:   res.Status.String(),
			Message:  res.Message,
			Line:     res.Line,
			Checksum: sum,
		})
		if err != nil {
			log.Printf("catalog: journal: %v", err)
		}
	}
	if m.OnResult != nil {
		m.OnResult(catalog, op, res)
	}
}

func (m *Manager) openRead(path string) (*os.File, persist.Result) {
	f, err := m.Guard.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, persist.IOErr(err)
	}
	return f, persist.OK()
}

// Load reads kind from filename (or its configured file when empty). The
// live catalog is replaced only when the whole load succeeds.
func (m *Manager) Load(kind Kind, filename string) persist.Result {
	b, res := m.binder(kind)
	if !res.IsOK() {
		return res
	}
	path := m.Path(kind)
	if filename != "" {
		path = m.resolve(filename)
	}

	f, res := m.openRead(path)
	if res.IsOK() {
		var commit func(*gamedb.Catalogs)
		commit, res = b.decode(persist.NewFileReader(f), path)
		m.Guard.Close(f)
		if res.IsOK() {
			commit(m.Catalogs)
		}
	}
	m.report(kind.String(), "load", b.formatFor(path), path, res, "")
	return res
}

// Save writes kind to filename (or its configured file when empty). Output
// goes to a temp file that replaces the target only after a complete write,
// so a failed save leaves the previous file intact.
func (m *Manager) Save(kind Kind, filename string) persist.Result {
	b, res := m.binder(kind)
	if !res.IsOK() {
		return res
	}
	path := m.Path(kind)
	if filename != "" {
		path = m.resolve(filename)
	}

	res = m.writeFile(path, func(w persist.Writer) persist.Result {
		return b.encode(w, path, m.Catalogs)
	})
	sum := ""
	if res.IsOK() {
		var err error
		if sum, err = journal.Checksum(path); err != nil {
			log.Printf("catalog: checksum %s: %v", path, err)
		}
	}
	m.report(kind.String(), "save", b.formatFor(path), path, res, sum)
	return res
}

func (m *Manager) writeFile(path string, encode func(w persist.Writer) persist.Result) persist.Result {
	tmp := path + ".tmp"
	f, err := m.Guard.Open(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return persist.IOErr(err)
	}
	res := encode(persist.NewFileWriter(f))
	if res.IsOK() {
		res = persist.ResultOf(f.Sync())
	}
	if err := m.Guard.Close(f); err != nil && res.IsOK() {
		res = persist.IOErr(err)
	}
	if res.IsOK() {
		res = persist.ResultOf(os.Rename(tmp, path))
	}
	if !res.IsOK() {
		os.Remove(tmp)
	}
	return res
}

// LoadAll loads every catalog from its configured file in boot order and
// stops at the first failure.
func (m *Manager) LoadAll() (Kind, persist.Result) {
	for _, k := range Kinds() {
		if res := m.Load(k, ""); !res.IsOK() {
			return k, res
		}
	}
	return 0, persist.OK()
}

// SaveAll saves every catalog to its configured file and stops at the first
// failure.
func (m *Manager) SaveAll() (Kind, persist.Result) {
	for _, k := range Kinds() {
		if res := m.Save(k, ""); !res.IsOK() {
			return k, res
		}
	}
	return 0, persist.OK()
}

// Convert reads kind from one file and writes it to another, selecting each
// side's format by extension. The live catalog is not touched.
func (m *Manager) Convert(kind Kind, from, to string) persist.Result {
	b, res := m.binder(kind)
	if !res.IsOK() {
		return res
	}
	src, dst := m.resolve(from), m.resolve(to)

	f, res := m.openRead(src)
	if res.IsOK() {
		res = m.writeFile(dst, func(w persist.Writer) persist.Result {
			return b.convert(persist.NewFileReader(f), src, w, dst)
		})
		m.Guard.Close(f)
	}
	format := b.formatFor(src) + "->" + b.formatFor(dst)
	m.report(kind.String(), "convert", format, dst, res, "")
	return res
}

// LoadLootSection reads one owner's loot section from r, which must be
// positioned just after the section's #LOOT line. The owner's previous
// groups and tables are replaced and every table is re-resolved; nothing
// changes on failure.
func (m *Manager) LoadLootSection(r persist.Reader, owner string) persist.Result {
	f, ok := m.lootReg.Sectioned()
	if !ok {
		return persist.UnsupportedErr("loot has no sectioned format")
	}
	dst := m.Catalogs.Loot.WithoutOwner(owner)
	res := f.LoadSection(r, owner, dst)
	if res.IsOK() {
		res = persist.ResultOf(loot.ResolveAll(dst))
	}
	if res.IsOK() {
		m.Catalogs.Loot = dst
	}
	m.report(gamedb.CatLoot, "load-section", f.Name, owner, res, "")
	return res
}

// SaveLootSection writes owner's loot section to w, ending with #ENDLOOT.
func (m *Manager) SaveLootSection(w persist.Writer, owner string) persist.Result {
	f, ok := m.lootReg.Sectioned()
	if !ok {
		return persist.UnsupportedErr("loot has no sectioned format")
	}
	res := f.SaveSection(w, owner, m.Catalogs.Loot)
	m.report(gamedb.CatLoot, "save-section", f.Name, owner, res, "")
	return res
}

// LoadLootSectionFile loads the first #LOOT section found in an area file.
func (m *Manager) LoadLootSectionFile(path, owner string) persist.Result {
	path = m.resolve(path)
	f, res := m.openRead(path)
	if !res.IsOK() {
		m.report(gamedb.CatLoot, "load-section", persist.FormatROM, path, res, "")
		return res
	}
	defer m.Guard.Close(f)

	fr := persist.NewFileReader(f)
	if err := seekSection(fr.Buffered(), flatfile.SentinelLoot); err != nil {
		res = persist.ResultOf(err)
		m.report(gamedb.CatLoot, "load-section", persist.FormatROM, path, res, "")
		return res
	}
	return m.LoadLootSection(fr, owner)
}

// seekSection consumes lines up to and including the first that starts with
// sentinel.
func seekSection(br *bufio.Reader, sentinel string) error {
	for {
		line, err := br.ReadString('\n')
		if fields := strings.Fields(line); len(fields) > 0 && fields[0] == sentinel {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return persist.Errorf(persist.NoLine, "no %s section", sentinel)
		}
		if err != nil {
			return err
		}
	}
}

func snapshotKey(kind Kind) string { return kind.String() + ".json" }

// Snapshot stores every catalog in store as JSON. It needs the JSON format.
func (m *Manager) Snapshot(store *boltstore.Store) persist.Result {
	info := &boltstore.SnapshotInfo{At: time.Now().UTC()}
	res := persist.OK()
	for _, k := range Kinds() {
		key := snapshotKey(k)
		w := store.Writer(key)
		res = m.bindings[k].encode(w, key, m.Catalogs)
		if !res.IsOK() {
			res = res.WithMessage(fmt.Sprintf("%s: %s", k, res.Message))
			break
		}
		info.Catalogs = append(info.Catalogs, k.String())
		info.Bytes += w.Len()
	}
	if res.IsOK() {
		res = persist.ResultOf(store.PutSnapshotInfo(info))
	}
	m.report("all", "snapshot", persist.FormatJSON, store.Path(), res, "")
	return res
}

// Restore replaces every catalog with the copies in store. Either all
// catalogs are replaced or none are.
func (m *Manager) Restore(store *boltstore.Store) persist.Result {
	var commits []func(*gamedb.Catalogs)
	res := persist.OK()
	for _, k := range Kinds() {
		key := snapshotKey(k)
		r, err := store.Reader(key)
		if err != nil {
			res = persist.IOErr(err)
			break
		}
		var commit func(*gamedb.Catalogs)
		commit, res = m.bindings[k].decode(r, key)
		if !res.IsOK() {
			res = res.WithMessage(fmt.Sprintf("%s: %s", k, res.Message))
			break
		}
		commits = append(commits, commit)
	}
	if res.IsOK() {
		for _, c := range commits {
			c(m.Catalogs)
		}
	}
	m.report("all", "restore", persist.FormatJSON, store.Path(), res, "")
	return res
}
