package patterns

import "sort"

// Component Engine (Union-Find)
//
// Groups addresses into weakly connected components: two addresses belong
// to the same component when a chain of transfers links them, ignoring edge
// direction. Used by the clustering detector.
//
// Implementation: Weighted Union-Find with path compression.
//   - Find: O(α(n)) amortized
//   - Union: O(α(n)) amortized
//   - Space: O(n) where n = number of tracked addresses

// ComponentEngine implements weighted Union-Find over address ids
type ComponentEngine struct {
	parent map[string]string
	rank   map[string]int
	size   map[string]int
}

// NewComponentEngine creates an empty engine
func NewComponentEngine() *ComponentEngine {
	return &ComponentEngine{
		parent: make(map[string]string),
		rank:   make(map[string]int),
		size:   make(map[string]int),
	}
}

// Add registers addr as a singleton component if it is not yet tracked
func (ce *ComponentEngine) Add(addr string) {
	if _, exists := ce.parent[addr]; !exists {
		ce.parent[addr] = addr
		ce.rank[addr] = 0
		ce.size[addr] = 1
	}
}

// Find returns the root representative of the component containing addr.
// Untracked addresses are added on first lookup.
func (ce *ComponentEngine) Find(addr string) string {
	ce.Add(addr)

	// Path compression
	if ce.parent[addr] != addr {
		ce.parent[addr] = ce.Find(ce.parent[addr])
	}
	return ce.parent[addr]
}

// Union merges the components containing a and b.
// Returns true if a merge actually occurred.
func (ce *ComponentEngine) Union(a, b string) bool {
	rootA := ce.Find(a)
	rootB := ce.Find(b)

	if rootA == rootB {
		return false
	}

	// Union by rank: attach the shallower tree under the deeper root
	switch {
	case ce.rank[rootA] < ce.rank[rootB]:
		ce.parent[rootA] = rootB
		ce.size[rootB] += ce.size[rootA]
	case ce.rank[rootA] > ce.rank[rootB]:
		ce.parent[rootB] = rootA
		ce.size[rootA] += ce.size[rootB]
	default:
		ce.parent[rootB] = rootA
		ce.size[rootA] += ce.size[rootB]
		ce.rank[rootA]++
	}
	return true
}

// Size returns the number of addresses in the component containing addr
func (ce *ComponentEngine) Size(addr string) int {
	return ce.size[ce.Find(addr)]
}

// Components returns every component as a sorted address list. Components
// are ordered by size descending, then by their first address.
func (ce *ComponentEngine) Components() [][]string {
	groups := make(map[string][]string)
	for addr := range ce.parent {
		root := ce.Find(addr)
		groups[root] = append(groups[root], addr)
	}

	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// Total returns the number of distinct components
func (ce *ComponentEngine) Total() int {
	roots := make(map[string]bool)
	for addr := range ce.parent {
		roots[ce.Find(addr)] = true
	}
	return len(roots)
}
