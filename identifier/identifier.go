// Package identifier computes the stable, content-addressed identifiers and checksums the
// synchronizer uses as remote hash keys: a deterministic, type-tagged binary encoding of
// arbitrary value trees feeding a SHA-1 digest. SHA-1 is used as an identifier function, not a
// security primitive.
package identifier

import (
	"bytes"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/icinga/icinga-redis-sync/icingadb/objectpacker"
	"github.com/icinga/icinga-redis-sync/utils"
)

// nameCacheSize bounds the memoised name->identifier cache. A single full dump of a
// large environment touches on the order of a few hundred thousand distinct names; 1<<18 keeps
// the cache well above that while still being a fixed, bounded cost.
const nameCacheSize = 1 << 18

var (
	nameCacheOnce sync.Once
	nameCache     *lru.Cache[string, string]
)

func cache() *lru.Cache[string, string] {
	nameCacheOnce.Do(func() {
		// lru.New2Q isn't needed: plain recency works fine for a monotonically growing set of
		// object names re-hashed across an outer/inner work-queue dump.
		c, err := lru.New[string, string](nameCacheSize)
		if err != nil {
			// Only returns an error for a non-positive size, which nameCacheSize never is.
			panic(err)
		}

		nameCache = c
	})

	return nameCache
}

// hexChecksum hex-encodes the SHA-1 checksum of data.
func hexChecksum(data []byte) string {
	return hex.EncodeToString(utils.Checksum(data))
}

// CheckSumString returns the hex SHA-1 checksum of the bytes of s.
func CheckSumString(s string) string {
	return hexChecksum([]byte(s))
}

// CheckSumArray returns the hex SHA-1 checksum of the canonical, order-preserving encoding of
// seq.
func CheckSumArray(seq []interface{}) string {
	return HashValue(seq)
}

// HashValue returns the hex SHA-1 checksum of the canonical encoding of an arbitrary value tree.
// Map keys are sorted before hashing so that two semantically equal but differently ordered maps
// hash identically.
func HashValue(v interface{}) string {
	var buf bytes.Buffer

	if err := objectpacker.PackAny(v, &buf); err != nil {
		// PackAny only fails for genuinely unsupported types (e.g. channels, funcs), which
		// callers in this repository never pass: every value handed to HashValue originates
		// from JSON-compatible config attributes or relation tuples.
		panic(err)
	}

	return hexChecksum(buf.Bytes())
}

// ObjectIdentifier returns the deterministic identifier of an object given its canonical name,
// memoised across calls within the process.
func ObjectIdentifier(name string) string {
	c := cache()

	if id, ok := c.Get(name); ok {
		return id
	}

	id := CheckSumString(name)
	c.Add(name, id)

	return id
}
