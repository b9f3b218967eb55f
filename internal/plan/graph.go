package plan

// resolveDependencies verifies every declared dependency names a feature in
// the same plan.
func resolveDependencies(features []Feature) error {
	known := make(map[string]bool, len(features))
	for _, f := range features {
		known[f.Name] = true
	}
	for _, f := range features {
		for _, dep := range f.Dependencies {
			if !known[dep] {
				return &Error{Kind: ErrUnresolvedDependency, Feature: f.Name,
					Field: "dependencies", Detail: "unknown feature " + dep}
			}
		}
	}
	return nil
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // fully explored
)

// detectCycles runs a three-color depth-first search over the dependency
// graph and reports the first cycle found, with its path.
func detectCycles(features []Feature) error {
	byName := make(map[string]*Feature, len(features))
	color := make(map[string]int, len(features))
	for i := range features {
		byName[features[i].Name] = &features[i]
	}

	var path []string
	var visit func(name string) *Error
	visit = func(name string) *Error {
		color[name] = colorGray
		path = append(path, name)
		for _, dep := range byName[name].Dependencies {
			switch color[dep] {
			case colorGray:
				return &Error{Kind: ErrCircularDependency, Feature: name,
					Cycle: cycleFrom(path, dep)}
			case colorWhite:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = colorBlack
		return nil
	}

	for _, f := range features {
		if color[f.Name] == colorWhite {
			if err := visit(f.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleFrom trims the DFS path to start at the repeated node and closes the
// loop by appending it again.
func cycleFrom(path []string, repeat string) []string {
	start := 0
	for i, n := range path {
		if n == repeat {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	return append(cycle, repeat)
}

// DependencyOrder returns the features in an order where every feature comes
// after all of its dependencies. Among ready features, declaration order
// breaks ties, so the result is deterministic. The input must already be
// cycle-free; Parse guarantees that.
func DependencyOrder(features []Feature) []Feature {
	index := make(map[string]int, len(features))
	for i, f := range features {
		index[f.Name] = i
	}

	indegree := make([]int, len(features))
	dependents := make(map[int][]int, len(features))
	for i, f := range features {
		indegree[i] = len(f.Dependencies)
		for _, dep := range f.Dependencies {
			j := index[dep]
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := make([]int, 0, len(features))
	for i := range features {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Feature, 0, len(features))
	for len(ready) > 0 {
		// Pick the earliest-declared ready feature.
		best := 0
		for k := 1; k < len(ready); k++ {
			if ready[k] < ready[best] {
				best = k
			}
		}
		next := ready[best]
		ready = append(ready[:best], ready[best+1:]...)

		ordered = append(ordered, features[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return ordered
}
