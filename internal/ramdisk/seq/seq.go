// Copyright (C) 2021 Vojtech Aschenbrenner <v@asch.cz>

// Package seq provides synchronized access to a write generation counter.
package seq

import (
	"sync"
)

// Counter hands out strictly increasing generations. Generation 0 is never
// handed out, it marks data which was never written.
type Counter struct {
	mutex sync.Mutex
	gen   int64
}

// Returns the last handed out generation, or 0 if there was none yet.
func (c *Counter) Current() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.gen
}

// Returns next unused generation and marks it as used.
func (c *Counter) Next() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.gen++

	return c.gen
}
