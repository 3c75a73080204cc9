// Package cache memoizes compilation artifacts keyed by source text, so
// repeated builds of the same program skip the whole pipeline.
package cache

import (
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"
)

// Artifact is one finished compilation: the assembly listing, the machine
// code it assembles to, and the map from code addresses back to listing
// lines for diagnostics.
type Artifact struct {
	Assembly    string
	MachineCode []byte
	SourceMap   map[uint16]int
}

// Key derives the cache key for a source text.
func Key(src string) [32]byte {
	return sha3.Sum256([]byte(src))
}

// Cache is a fixed-capacity ARC cache of compilation artifacts.
type Cache struct {
	arc *lru.ARCCache
}

// New creates a cache holding up to size artifacts.
func New(size int) (*Cache, error) {
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Cache{arc: arc}, nil
}

// Get returns the cached artifact for src, if present.
func (c *Cache) Get(src string) (*Artifact, bool) {
	v, ok := c.arc.Get(Key(src))
	if !ok {
		return nil, false
	}
	return v.(*Artifact), true
}

// Put stores the artifact for src.
func (c *Cache) Put(src string, a *Artifact) {
	c.arc.Add(Key(src), a)
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int {
	return c.arc.Len()
}
