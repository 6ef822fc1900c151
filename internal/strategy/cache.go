package strategy

// Cache memoizes expensive per-candle computations, keyed by name and
// invalidated automatically when the step index advances. It replaces
// ambient caching tricks with an explicit object owned by the context.
type Cache struct {
	step   int
	values map[string]any
}

// NewCache creates an empty cache positioned before the first step.
func NewCache() *Cache {
	return &Cache{step: -1, values: make(map[string]any)}
}

// advance clears the cache when the step moves.
func (c *Cache) advance(step int) {
	if step != c.step {
		c.step = step
		clear(c.values)
	}
}

// GetOrCompute returns the cached value for key, computing and storing it
// on first use within the current step.
func (c *Cache) GetOrCompute(key string, compute func() any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	v := compute()
	c.values[key] = v
	return v
}

// Memo is a typed convenience wrapper around Cache.GetOrCompute.
func Memo[T any](c *Cache, key string, compute func() T) T {
	return c.GetOrCompute(key, func() any { return compute() }).(T)
}
