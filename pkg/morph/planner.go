package morph

import (
	"github.com/wayneeseguin/morph/log"
)

// migrationEdge is one registered hop of the migration graph.
type migrationEdge struct {
	to      string
	program Migration
}

// Planner is a directed multigraph of schema-id edges, each labeled with a
// migration program. Registration happens up front; a Plan call reads the
// graph without mutating it, so concurrent planning over a settled planner
// is safe.
type Planner struct {
	edges map[string][]migrationEdge
}

// NewPlanner returns an empty planner.
func NewPlanner() *Planner {
	return &Planner{edges: map[string][]migrationEdge{}}
}

// Register adds an edge from one schema id to another. Multiple edges
// between the same pair are kept; the earliest registered wins at equal
// path length.
func (p *Planner) Register(from, to string, program Migration) {
	p.edges[from] = append(p.edges[from], migrationEdge{to: to, program: program})
}

// Plan finds the shortest composed migration from one schema id to another
// by breadth-first search, concatenating edge programs along the path.
// Identical ids yield the empty migration.
func (p *Planner) Plan(from, to string) (Migration, error) {
	if from == to {
		return Migration{}, nil
	}

	type queueItem struct {
		id      string
		program Migration
	}
	queue := []queueItem{{id: from}}
	visited := map[string]bool{from: true}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		for _, edge := range p.edges[item.id] {
			if visited[edge.to] {
				continue
			}
			composed := item.program.Concat(edge.program)
			if edge.to == to {
				log.DEBUG("planner: %s -> %s in %d actions", from, to, len(composed.Actions))
				return composed, nil
			}
			visited[edge.to] = true
			queue = append(queue, queueItem{id: edge.to, program: composed})
		}
	}
	return Migration{}, newPlannerError(from, to)
}
