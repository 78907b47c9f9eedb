package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
)

// Info holds metadata about an existing archive file.
type Info struct {
	Path      string
	Filename  string
	Size      int64
	Timestamp string // from the manifest, or the file's mod time
	MudName   string
	Files     int
}

// List scans dir for archives, newest first.
func List(dir string) ([]Info, error) {
	pattern := filepath.Join(dir, "*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive: glob %s: %w", pattern, err)
	}

	var out []Info
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		ai := Info{
			Path:      path,
			Filename:  filepath.Base(path),
			Size:      st.Size(),
			Timestamp: st.ModTime().UTC().Format(timeLayout),
		}
		if m, err := readManifest(path); err == nil {
			ai.Timestamp = m.Timestamp
			ai.MudName = m.MudName
			ai.Files = len(m.Files)
		}
		out = append(out, ai)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out, nil
}

// Prune deletes all but the newest retain archives in dir. retain <= 0
// keeps everything.
func Prune(dir string, retain int) ([]string, error) {
	if retain <= 0 {
		return nil, nil
	}
	all, err := List(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, ai := range all[min(retain, len(all)):] {
		if err := os.Remove(ai.Path); err != nil {
			return removed, fmt.Errorf("archive: prune %s: %w", ai.Path, err)
		}
		removed = append(removed, ai.Path)
	}
	return removed, nil
}

func readManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Name == manifestName {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			var m Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, err
			}
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%s not found in archive", manifestName)
}
