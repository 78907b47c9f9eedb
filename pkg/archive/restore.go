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

	"github.com/goccy/go-json"
	"lukechampine.com/blake3"
)

// Dest says where restored files go. Empty fields skip that part.
type Dest struct {
	DataDir     string // catalog files
	BoltPath    string
	JournalPath string
	ConfPath    string
}

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	Manifest      Manifest
	FilesRestored int
	Warnings      []string
}

// Restore verifies every checksum in the archive and then copies its files
// into place. Nothing is written when verification fails. Run it before the
// databases it replaces are opened.
func Restore(archivePath string, d Dest) (*RestoreResult, error) {
	tmpDir, err := os.MkdirTemp("", "gorom-restore-*")
	if err != nil {
		return nil, fmt.Errorf("restore: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extract(archivePath, tmpDir); err != nil {
		return nil, fmt.Errorf("restore: extract: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("restore: %s not found in archive", manifestName)
	}
	res := &RestoreResult{}
	if err := json.Unmarshal(data, &res.Manifest); err != nil {
		return nil, fmt.Errorf("restore: parse manifest: %w", err)
	}

	for name, entry := range res.Manifest.Files {
		ok, err := verify(filepath.Join(tmpDir, filepath.FromSlash(name)), entry.BLAKE3)
		if err != nil {
			return nil, fmt.Errorf("restore: checksum %s: %w", name, err)
		}
		if !ok {
			return nil, fmt.Errorf("restore: checksum mismatch for %s; archive may be corrupt", name)
		}
	}

	for name, entry := range res.Manifest.Files {
		src := filepath.Join(tmpDir, filepath.FromSlash(name))
		var dst string
		switch entry.Type {
		case TypeCatalog:
			if d.DataDir != "" {
				dst = filepath.Join(d.DataDir, filepath.Base(name))
			}
		case TypeBolt:
			dst = d.BoltPath
		case TypeJournal:
			dst = d.JournalPath
			if dst != "" {
				// A stale WAL would be replayed over the restored file.
				os.Remove(dst + "-wal")
				os.Remove(dst + "-shm")
			}
		case TypeConf:
			if d.ConfPath != "" && filepath.Base(name) == filepath.Base(d.ConfPath) {
				dst = d.ConfPath
			}
		}
		if dst == "" {
			res.Warnings = append(res.Warnings, "skipped "+name)
			continue
		}
		if err := copyFile(src, dst); err != nil {
			return res, fmt.Errorf("restore: copy %s: %w", name, err)
		}
		res.FilesRestored++
	}
	return res, nil
}

func extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("invalid archive entry: %s", hdr.Name)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}
}

func verify(path, expected string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}
