package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crystal-mush/gorom/pkg/catalog"
)

func writeConf(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadGameConfYAML(t *testing.T) {
	dir := t.TempDir()
	p := writeConf(t, dir, "game.yaml", `
mud_name: Testhaven
port: 5000
tick_ms: 100
json_formats: true
catalog_files:
  races: races.json
admins:
  imp: "$2a$10$abcdefghijklmnopqrstuv"
cleartext: false
tls: true
tls_port: 5443
`)
	gc, err := LoadGameConf(p)
	if err != nil {
		t.Fatal(err)
	}
	if gc.MudName != "Testhaven" || gc.Port != 5000 || !gc.JSONFormats {
		t.Errorf("unexpected conf: %+v", gc)
	}
	if gc.ChunkSize != DefaultGameConf().ChunkSize {
		t.Errorf("unset key lost its default: chunk_size=%d", gc.ChunkSize)
	}

	sc := gc.ServerConfig()
	if sc.Addr != "" || sc.TLSAddr != ":5443" || sc.Tick != 100*time.Millisecond {
		t.Errorf("ServerConfig = %+v", sc)
	}
	cc := gc.CatalogConfig()
	if cc.Files[catalog.Races] != "races.json" || !cc.JSON {
		t.Errorf("CatalogConfig = %+v", cc)
	}
}

func TestLoadGameConfLegacy(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "admins.conf", "admin imp $2a$10$abcdefghijklmnopqrstuv\nadmin kirn ab01FAX.bQRSU\n")
	p := writeConf(t, dir, "game.conf", `# legacy style
mud_name Old Haven
pulse_ms 200
idle_timeout 0
catalog_file loot area-loot.olc
include admins.conf
web_enabled yes
`)
	gc, err := LoadGameConf(p)
	if err != nil {
		t.Fatal(err)
	}
	if gc.MudName != "Old Haven" || gc.TickMS != 200 || gc.IdleTimeout != 0 || !gc.WebEnabled {
		t.Errorf("unexpected conf: %+v", gc)
	}
	if len(gc.Admins) != 2 || gc.Admins["kirn"] != "ab01FAX.bQRSU" {
		t.Errorf("admins = %v", gc.Admins)
	}
	if gc.CatalogConfig().Files[catalog.Loot] != "area-loot.olc" {
		t.Errorf("catalog files = %v", gc.CatalogFiles)
	}
	if gc.ServerConfig().IdleTimeout != 0 {
		t.Error("idle timeout should be disabled")
	}
}

func TestGameConfValidate(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"badkind.yaml":  "catalog_files:\n  weapons: weapons.olc\n",
		"badtick.yaml":  "tick_ms: 0\n",
		"nolisten.yaml": "cleartext: false\n",
	} {
		if _, err := LoadGameConf(writeConf(t, dir, name, body)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLegacyIncludeLoop(t *testing.T) {
	dir := t.TempDir()
	p := writeConf(t, dir, "loop.conf", "include loop.conf\n")
	if _, err := LoadGameConf(p); err == nil {
		t.Error("circular include not detected")
	}
}
