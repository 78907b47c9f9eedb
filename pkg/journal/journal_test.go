package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecordRecent(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.db"), 5)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	entries := []Entry{
		{Catalog: "races", Op: "load", Format: "rom-olc", Path: "races.olc", Status: "ok", Line: -1},
		{Catalog: "races", Op: "save", Format: "rom-olc", Path: "races.olc", Status: "ok", Line: -1, Checksum: "aa"},
		{Catalog: "loot", Op: "load", Format: "json", Path: "loot.json", Status: "format error", Message: "bad", Line: 3},
		{Catalog: "races", Op: "save", Format: "rom-olc", Path: "races.olc", Status: "I/O error", Line: -1},
	}
	for _, e := range entries {
		if err := j.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d", len(got))
	}
	if got[0].Status != "I/O error" || got[1].Line != 3 || got[1].Message != "bad" {
		t.Errorf("Recent = %+v", got)
	}
	if got[0].At.IsZero() {
		t.Error("At not stamped")
	}

	sum, err := j.LastChecksum("races.olc")
	if err != nil || sum != "aa" {
		t.Errorf("LastChecksum = %q, %v", sum, err)
	}
	if sum, _ := j.LastChecksum("nothing"); sum != "" {
		t.Errorf("LastChecksum(nothing) = %q", sum)
	}
}

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")
	os.WriteFile(path, []byte("abc"), 0o644)
	a, err := Checksum(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 {
		t.Errorf("checksum length = %d", len(a))
	}
	os.WriteFile(path, []byte("abd"), 0o644)
	b, _ := Checksum(path)
	if a == b {
		t.Error("checksum did not change with content")
	}
	if _, err := Checksum(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestClosed(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "j.db"), 1)
	if err != nil {
		t.Fatal(err)
	}
	j.Close()
	if err := j.Record(Entry{}); err == nil {
		t.Error("Record after Close should fail")
	}
}
