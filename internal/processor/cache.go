package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clinidocs/fieldmapper/internal/extract"
)

// resultCache is the bounded read-through cache: on miss, compute and store;
// on hit, return without recomputation. Keys derive from document content and
// template identity, never from file paths. Stored reports are treated as
// immutable; callers put and receive clones.
type resultCache struct {
	lru *lru.Cache[string, *FinalReport]
}

func newResultCache(size int) (*resultCache, error) {
	if size <= 0 {
		return nil, nil // caching disabled
	}
	c, err := lru.New[string, *FinalReport](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{lru: c}, nil
}

func (c *resultCache) get(key string) (*FinalReport, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *resultCache) put(key string, rep *FinalReport) {
	if c == nil {
		return
	}
	c.lru.Add(key, rep)
}

// contentHash returns the hex SHA-256 of the document's content: file bytes
// when a path is set, the inline text otherwise.
func contentHash(doc extract.Document) (string, error) {
	h := sha256.New()
	if doc.Path != "" {
		data, err := os.ReadFile(doc.Path)
		if err != nil {
			return "", err
		}
		h.Write(data)
	} else {
		h.Write([]byte(doc.Text))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
