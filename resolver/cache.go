package resolver

import (
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/erp_importer/models"
)

type entry struct {
	id       models.Identifier
	negative bool
}

// Cache memoizes resolutions for the lifetime of one run, including
// negative results so a missing reference is never re-queried. Reads are
// lock-free (sync.Map); in-flight lookups are serialized by a sharded
// per-key lock so concurrent workers do not issue duplicate searches.
type Cache struct {
	entries sync.Map
	locks   [64]sync.Mutex
}

func NewCache() *Cache { return &Cache{} }

// Key builds the cache key from the reference kind, normalized tokens and
// disambiguators.
func Key(ref models.SymbolicReference) string {
	parts := []string{string(ref.Kind)}
	for _, t := range ref.Tokens {
		parts = append(parts, strings.ToLower(strings.Join(strings.Fields(t), " ")))
	}
	keys := make([]string, 0, len(ref.Disambiguators))
	for k := range ref.Disambiguators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+strings.ToLower(strings.TrimSpace(ref.Disambiguators[k])))
	}
	return strings.Join(parts, "\x00")
}

// Get returns (identifier, found, known). known=false means the key was
// never looked up; found=false with known=true is a cached negative.
func (c *Cache) Get(key string) (models.Identifier, bool, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return models.Identifier{}, false, false
	}
	e := v.(entry)
	return e.id, !e.negative, true
}

func (c *Cache) PutPositive(key string, id models.Identifier) {
	c.entries.Store(key, entry{id: id})
}

func (c *Cache) PutNegative(key string) {
	c.entries.Store(key, entry{negative: true})
}

// Lock returns the shard lock for a key. Held across the remote lookup so
// the same unresolved key is searched at most once at a time.
func (c *Cache) Lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.locks[h.Sum32()%uint32(len(c.locks))]
}
