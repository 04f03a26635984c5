package patterns

import (
	"math"
	"strings"

	"github.com/rawblock/riskgraph/internal/graph"
	"github.com/rawblock/riskgraph/pkg/models"
)

// DetectRoundTripping enumerates simple cycles through addr. Only nodes that
// both reach addr and are reachable from it can lie on such a cycle, so the
// search runs over that induced subgraph. Enumeration stops at MaxCycles or
// after MaxSearchSteps expansions, and never follows a path that cannot close
// within MaxCycleLength nodes.
func (d *Detector) DetectRoundTripping(g *graph.Graph, addr string) models.RoundTripResult {
	res := models.RoundTripResult{
		PatternType: models.PatternRoundTripping,
		Cycles:      []models.RoundTripCycle{},
	}
	if !g.HasNode(addr) {
		return res
	}

	forward := reachable(g, addr, true)
	backward := reachable(g, addr, false)
	members := make([]string, 0, len(forward))
	for n := range forward {
		if backward[n] {
			members = append(members, n)
		}
	}
	sub := g.InducedSubgraph(members)

	search := d.searchCycles(sub, addr)
	res.Cycles = search.cycles
	res.Truncated = search.truncated
	for _, c := range res.Cycles {
		res.MaxRiskScore = math.Max(res.MaxRiskScore, c.RiskScore)
	}
	return res
}

type cycleSearch struct {
	cycles    []models.RoundTripCycle
	steps     int
	truncated bool
}

// searchCycles runs the bounded DFS over sub. dist holds the fewest edges
// from each node back to addr; a branch is cut as soon as the shortest
// possible closure would exceed MaxCycleLength nodes.
func (d *Detector) searchCycles(sub *graph.Graph, addr string) cycleSearch {
	out := cycleSearch{cycles: []models.RoundTripCycle{}}
	dist := distancesTo(sub, addr)
	seen := make(map[string]bool)
	onPath := map[string]bool{addr: true}

	var dfs func(current string, path []string)
	dfs = func(current string, path []string) {
		if out.truncated {
			return
		}
		out.steps++
		if d.cfg.MaxSearchSteps > 0 && out.steps > d.cfg.MaxSearchSteps {
			out.truncated = true
			return
		}
		for _, next := range distinctTargets(sub, current) {
			if len(out.cycles) >= d.cfg.MaxCycles || out.truncated {
				return
			}
			if next == addr {
				if len(path) < 2 {
					continue
				}
				key := strings.Join(path, "\x00")
				if seen[key] {
					continue
				}
				seen[key] = true
				cycle := make([]string, len(path))
				copy(cycle, path)
				out.cycles = append(out.cycles, models.RoundTripCycle{
					Path:      cycle,
					Length:    len(cycle),
					RiskScore: cycleRisk(len(cycle)),
				})
				continue
			}
			if onPath[next] {
				continue
			}
			back, ok := dist[next]
			if !ok || len(path)+back > d.cfg.MaxCycleLength {
				continue
			}
			onPath[next] = true
			dfs(next, append(path, next))
			delete(onPath, next)
		}
	}
	dfs(addr, []string{addr})
	return out
}

// distancesTo returns the BFS distance in edges from every node of g that
// can reach target, to target
func distancesTo(g *graph.Graph, target string) map[string]int {
	dist := map[string]int{target: 0}
	queue := []string{target}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.Predecessors(current) {
			if _, ok := dist[e.From]; !ok {
				dist[e.From] = dist[current] + 1
				queue = append(queue, e.From)
			}
		}
	}
	return dist
}

// cycleRisk: 40 base, +30 for a direct return, +20 for cycles of up to four nodes
func cycleRisk(length int) float64 {
	risk := 40.0
	switch {
	case length == 2:
		risk += 30
	case length <= 4:
		risk += 20
	}
	return capScore(risk)
}

// distinctTargets returns the successor addresses of addr once each, in
// first-edge order. Parallel edges describe the same cycle.
func distinctTargets(g *graph.Graph, addr string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range g.Successors(addr) {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out
}

// reachable returns every node reachable from start following edges forward
// or backward, start included
func reachable(g *graph.Graph, start string, forward bool) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var edges []models.Transfer
		if forward {
			edges = g.Successors(current)
		} else {
			edges = g.Predecessors(current)
		}
		for _, e := range edges {
			next := e.To
			if !forward {
				next = e.From
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}
