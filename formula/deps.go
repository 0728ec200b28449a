package formula

// ============================================================================
// DEPENDENCIES — Cycle detection and evaluation order
// ============================================================================
// A calculated field depends on another when it references that field's
// name or ID. Depth-first traversal with a recursion stack: meeting a node
// already on the stack closes a cycle, and every node on that stretch of
// the stack is circular.
// ============================================================================

type depGraph struct {
	fields []CalculatedField
	edges  [][]int // edges[i] = calculated fields field i references
}

func newDepGraph(fields []CalculatedField) *depGraph {
	byRef := map[string]int{}
	for i, f := range fields {
		if f.Name != "" {
			if _, dup := byRef[f.Name]; !dup {
				byRef[f.Name] = i
			}
		}
		if f.ID != "" {
			if _, dup := byRef[f.ID]; !dup {
				byRef[f.ID] = i
			}
		}
	}

	g := &depGraph{fields: fields, edges: make([][]int, len(fields))}
	for i, f := range fields {
		seen := map[int]bool{}
		for _, dep := range dependenciesOf(f) {
			if j, ok := byRef[dep]; ok && !seen[j] {
				seen[j] = true
				g.edges[i] = append(g.edges[i], j)
			}
		}
	}
	return g
}

// dependenciesOf returns the declared dependencies, or those parsed from
// the formula when none are declared.
func dependenciesOf(f CalculatedField) []string {
	if len(f.Dependencies) > 0 {
		return f.Dependencies
	}
	parsed, err := Parse(f.Formula)
	if err != nil {
		return nil
	}
	return parsed.Dependencies
}

// cycles returns, per field, the cycle it lies on (nil when acyclic).
func (g *depGraph) cycles() [][]int {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(g.fields))
	out := make([][]int, len(g.fields))
	stack := []int{}

	var visit func(i int)
	visit = func(i int) {
		state[i] = onStack
		stack = append(stack, i)
		for _, j := range g.edges[i] {
			switch state[j] {
			case unvisited:
				visit(j)
			case onStack:
				start := len(stack) - 1
				for stack[start] != j {
					start--
				}
				cycle := append([]int{}, stack[start:]...)
				for _, k := range cycle {
					if out[k] == nil {
						out[k] = cycle
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
	}

	for i := range g.fields {
		if state[i] == unvisited {
			visit(i)
		}
	}
	return out
}

// order returns field indices so that every field follows the fields it
// references, skipping excluded ones. Ties keep input order.
func (g *depGraph) order(excluded map[int]bool) []int {
	visited := make([]bool, len(g.fields))
	out := make([]int, 0, len(g.fields))

	var visit func(i int)
	visit = func(i int) {
		visited[i] = true
		for _, j := range g.edges[i] {
			if !visited[j] && !excluded[j] {
				visit(j)
			}
		}
		out = append(out, i)
	}

	for i := range g.fields {
		if !visited[i] && !excluded[i] {
			visit(i)
		}
	}
	return out
}

// CheckDependencies reports calculated fields that lie on a reference cycle.
func CheckDependencies(fields []CalculatedField) DependencyReport {
	report := DependencyReport{CircularFields: []string{}}
	for i, cycle := range newDepGraph(fields).cycles() {
		if cycle != nil {
			report.HasCircularDependency = true
			report.CircularFields = append(report.CircularFields, displayName(fields[i]))
		}
	}
	return report
}

func displayName(f CalculatedField) string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}
