package step

import "github.com/mrz1836/cadence/internal/domain"

// Context maps variable names to values. The scenario context is shared by
// every step of one run and mutated only by the single task executing it.
type Context map[string]any

// Merge returns a new context holding every entry of the given contexts;
// later contexts override earlier ones.
func Merge(contexts ...Context) Context {
	size := 0
	for _, c := range contexts {
		size += len(c)
	}
	out := make(Context, size)
	for _, c := range contexts {
		for k, v := range c {
			out[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the context.
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	return Context(domain.CloneMap(c))
}
