package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/xeptore/mpdq/config"
	"github.com/xeptore/mpdq/fetch"
)

type Cache struct {
	Manifests  ManifestsCache
	DefaultTTL time.Duration
}

func New(conf config.Cache) *Cache {
	manifestsCache := ccache.New(
		ccache.Configure[*fetch.Manifest]().
			MaxSize(conf.MaxSize).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		Manifests: ManifestsCache{
			c:   manifestsCache,
			mux: sync.Mutex{},
		},
		DefaultTTL: conf.TTL.Duration,
	}
}

// ManifestsCache holds fetched manifests by request URL.
type ManifestsCache struct {
	c   *ccache.Cache[*fetch.Manifest]
	mux sync.Mutex
}

func (c *ManifestsCache) Fetch(
	k string,
	ttl time.Duration,
	load func() (*fetch.Manifest, error),
) (*ccache.Item[*fetch.Manifest], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, load)
	if nil != err {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	return v, nil
}

func (c *ManifestsCache) Delete(k string) bool {
	return c.c.Delete(k)
}

func (c *ManifestsCache) Close() {
	c.c.Stop()
}
