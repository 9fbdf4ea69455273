package cache

import (
	"github.com/xeptore/beater/spotify/types"
)

func (c *ContentCache) Waiters(k types.FileID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[k]; ok {
		return f.waiters
	}

	return 0
}
