package container

import "fmt"

// Resolve returns the instance under key as a T.
func Resolve[T any](c *Container, key string) (T, error) {
	var zero T
	v, err := c.Get(key)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T, want %T", ErrServiceType, key, v, zero)
	}
	return t, nil
}

// Dependency returns deps[i] as a T. A missing or nil dependency yields the
// zero value and false.
func Dependency[T any](deps []any, i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(deps) || deps[i] == nil {
		return zero, false
	}
	t, ok := deps[i].(T)
	return t, ok
}
