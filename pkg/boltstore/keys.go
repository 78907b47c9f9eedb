package boltstore

import "strings"

// Bucket name constants for bbolt storage.
var (
	bucketMeta     = []byte("meta")
	bucketCatalogs = []byte("catalogs")
)

// Meta key constants.
var (
	keyVersion  = []byte("version")
	keySnapshot = []byte("snapshot")
)

// storeVersion is bumped when the value encoding changes.
const storeVersion = 1

// catalogKey normalizes a stream key ("races.json") for the catalogs bucket.
func catalogKey(name string) []byte {
	return []byte(strings.ToLower(name))
}
