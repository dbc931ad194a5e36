package feature

import "slices"

// resolveOrder returns names ordered so that every feature follows its
// dependencies. Features are visited in registration order and dependencies
// in declaration order, so the result is deterministic.
func resolveOrder(names []string, deps func(string) ([]string, bool)) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(names))
	order := make([]string, 0, len(names))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case done:
			return nil
		case visiting:
			start := slices.Index(stack, name)
			cycle := append(slices.Clone(stack[start:]), name)
			return &DependencyError{Feature: name, Cycle: cycle, Err: ErrCyclicDependency}
		}

		requires, _ := deps(name)
		marks[name] = visiting
		stack = append(stack, name)
		for _, dep := range requires {
			if _, ok := deps(dep); !ok {
				return &DependencyError{Feature: name, Dependency: dep, Err: ErrDependencyNotFound}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// levels groups an install order into batches whose members depend only on
// earlier batches.
func levels(order []string, deps func(string) ([]string, bool)) [][]string {
	depth := make(map[string]int, len(order))
	var batches [][]string
	for _, name := range order {
		d := 0
		requires, _ := deps(name)
		for _, dep := range requires {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[name] = d
		if d == len(batches) {
			batches = append(batches, nil)
		}
		batches[d] = append(batches[d], name)
	}
	return batches
}
