package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crystal-mush/gorom/pkg/catalog"
	"github.com/crystal-mush/gorom/pkg/fileguard"
	"github.com/crystal-mush/gorom/pkg/gamedb"
	"github.com/crystal-mush/gorom/pkg/journal"
)

type fakeHistory map[string]string

func (h fakeHistory) LastChecksum(path string) (string, error) { return h[path], nil }

func TestWatcherSkipsOwnSaves(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "races.olc")
	os.WriteFile(p, []byte("#RACE human\n"), 0o644)
	sum, err := journal.Checksum(p)
	if err != nil {
		t.Fatal(err)
	}
	cw := &CatalogWatcher{history: fakeHistory{p: sum}, seen: make(map[string]string)}

	if cw.changed(p) {
		t.Error("game's own save reported as a change")
	}
	os.WriteFile(p, []byte("#RACE elf\n"), 0o644)
	if !cw.changed(p) {
		t.Error("outside edit not reported")
	}
	if cw.changed(p) {
		t.Error("same content reported twice")
	}
	if cw.changed(filepath.Join(dir, "missing.olc")) {
		t.Error("missing file reported")
	}
}

func TestWatchCatalogsNotifies(t *testing.T) {
	dir := t.TempDir()
	g, err := fileguard.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Shutdown)
	m := catalog.New(catalog.Config{DataDir: dir}, gamedb.Starter(), g)
	in := newInbox(8, func() {})

	type note struct {
		kind catalog.Kind
		path string
	}
	got := make(chan note, 4)
	cw, err := WatchCatalogs(m, in, nil, func(k catalog.Kind, p string) { got <- note{k, p} })
	if err != nil {
		t.Fatal(err)
	}
	defer cw.Close()

	os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644)
	os.WriteFile(m.Path(catalog.Socials), []byte("#SOCIAL\n"), 0o644)

	deadline := time.After(3 * time.Second)
	for {
		in.drain()
		select {
		case n := <-got:
			if n.kind != catalog.Socials || n.path != filepath.Clean(m.Path(catalog.Socials)) {
				t.Errorf("notified %s %s", n.kind, n.path)
			}
			return
		case <-deadline:
			t.Fatal("no notification")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
