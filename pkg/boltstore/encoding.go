package boltstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
)

// SnapshotInfo describes the last full snapshot written to the store.
type SnapshotInfo struct {
	At       time.Time
	Catalogs []string
	Bytes    int // uncompressed total
}

func init() {
	gob.Register(SnapshotInfo{})
}

// compress packs a catalog document into an lz4 frame.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// decompress unpacks a value written by compress.
func decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 read: %w", err)
	}
	return out, nil
}

// encodeSnapshot serializes SnapshotInfo using gob.
func encodeSnapshot(info *SnapshotInfo) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(info); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSnapshot deserializes bytes back into SnapshotInfo.
func decodeSnapshot(data []byte) (*SnapshotInfo, error) {
	var info SnapshotInfo
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
