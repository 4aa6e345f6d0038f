package hub

import "sync"

// counter is the shared value behind the counter route. Actions fold
// in under one lock so concurrent members cannot interleave halfway.
type counter struct {
	mu sync.Mutex
	v  float64
}

func (c *counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *counter) Apply(action string, value float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch action {
	case "increment":
		c.v += value
	case "decrement":
		c.v -= value
	case "reset":
		c.v = value
	}
	return c.v
}
