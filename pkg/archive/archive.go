// Package archive bundles the world's persistent state into a single
// .tar.gz: every catalog file, a bolt snapshot copy, the persistence journal
// and the game config, with a manifest of BLAKE3 checksums.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"lukechampine.com/blake3"
)

// Entry types recorded in the manifest.
const (
	TypeCatalog = "catalog"
	TypeBolt    = "bolt"
	TypeJournal = "journal"
	TypeConf    = "conf"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const (
	manifestName = "manifest.json"
	boltName     = "data/snapshot.bolt"
	journalName  = "data/journal.db"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Server    string               `json:"server"`
	Timestamp string               `json:"timestamp"`
	MudName   string               `json:"mud_name"`
	Counts    map[string]int       `json:"counts"` // records per catalog
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	BLAKE3 string `json:"blake3"`
	Size   int64  `json:"size"`
	Type   string `json:"type"`
}

// Params holds everything Create needs.
type Params struct {
	Dir      string   // output directory
	MudName  string
	Counts   map[string]int
	Catalogs []string // catalog files; missing ones are skipped
	ConfPath string   // empty = skip

	// BoltBackup and JournalBackup write consistent copies of live
	// databases to the given path. nil skips that part.
	BoltBackup    func(dest string) error
	JournalBackup func(dest string) error
}

// Create writes a new archive into p.Dir and returns its path.
func Create(p Params) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", p.Dir, err)
	}
	now := time.Now()
	stamp := now.Format("20060102-150405")
	path := filepath.Join(p.Dir, "archive-"+stamp+".tar.gz")
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(p.Dir, fmt.Sprintf("archive-%s-%d.tar.gz", stamp, i))
	}

	tmpDir, err := os.MkdirTemp("", "gorom-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	type staged struct{ src, name, kind string }
	var files []staged
	if p.BoltBackup != nil {
		dst := filepath.Join(tmpDir, "snapshot.bolt")
		if err := p.BoltBackup(dst); err != nil {
			return "", fmt.Errorf("archive: bolt snapshot: %w", err)
		}
		files = append(files, staged{dst, boltName, TypeBolt})
	}
	if p.JournalBackup != nil {
		dst := filepath.Join(tmpDir, "journal.db")
		if err := p.JournalBackup(dst); err != nil {
			return "", fmt.Errorf("archive: journal copy: %w", err)
		}
		files = append(files, staged{dst, journalName, TypeJournal})
	}
	for _, c := range p.Catalogs {
		if _, err := os.Stat(c); err == nil {
			files = append(files, staged{c, "catalogs/" + filepath.Base(c), TypeCatalog})
		}
	}
	if p.ConfPath != "" {
		if _, err := os.Stat(p.ConfPath); err == nil {
			files = append(files, staged{p.ConfPath, "conf/" + filepath.Base(p.ConfPath), TypeConf})
		}
	}

	manifest := Manifest{
		Version:   1,
		Server:    "GoROM",
		Timestamp: now.UTC().Format(timeLayout),
		MudName:   p.MudName,
		Counts:    p.Counts,
		Files:     make(map[string]FileEntry),
	}

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", tmp, err)
	}
	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)
	werr := func() error {
		for _, f := range files {
			entry, err := addFileToTar(tw, f.src, f.name)
			if err != nil {
				return err
			}
			entry.Type = f.kind
			manifest.Files[f.name] = entry
		}
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("archive: marshal manifest: %w", err)
		}
		if err := tw.WriteHeader(&tar.Header{
			Name:    manifestName,
			Size:    int64(len(data)),
			Mode:    0o644,
			ModTime: now,
		}); err != nil {
			return fmt.Errorf("archive: write manifest header: %w", err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("archive: write manifest: %w", err)
		}
		if err := tw.Close(); err != nil {
			return err
		}
		if err := gw.Close(); err != nil {
			return err
		}
		return out.Close()
	}()
	if werr != nil {
		out.Close()
		os.Remove(tmp)
		return "", werr
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("archive: %w", err)
	}
	return path, nil
}

// addFileToTar adds one file under archName, hashing it while writing.
func addFileToTar(tw *tar.Writer, srcPath, archName string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}
	archName = strings.ReplaceAll(archName, "\\", "/")
	if err := tw.WriteHeader(&tar.Header{
		Name:    archName,
		Size:    info.Size(),
		Mode:    0o644,
		ModTime: info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", archName, err)
	}

	h := blake3.New(32, nil)
	written, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", archName, err)
	}
	return FileEntry{BLAKE3: hex.EncodeToString(h.Sum(nil)), Size: written}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
