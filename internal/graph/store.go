package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Transaction Graph Store
//
// Directed multigraph of addresses (nodes) and transfers (edges), built
// incrementally as transfers are submitted. Parallel edges between the same
// pair of addresses are kept: every transfer is its own edge, and adjacency
// lists preserve insertion order.
//
// Concurrency model: a single writer (AddTransfer, SetRiskScore) and any
// number of readers. Detectors never hold a *Store; they run inside View and
// receive an immutable *Graph accessor that performs no locking of its own.

// ErrGraphInconsistency signals that an edge references an address missing
// from the node table. This is a programming-contract violation and is raised
// as a panic, never returned.
var ErrGraphInconsistency = errors.New("graph inconsistency")

type node struct {
	address string
	txs     []string
	risk    float64
	out     []int // indices into adjacency.edges
	in      []int
}

type adjacency struct {
	nodes  map[string]*node
	edges  []models.Transfer
	byHash map[string][]int
}

func newAdjacency() *adjacency {
	return &adjacency{
		nodes:  make(map[string]*node),
		byHash: make(map[string][]int),
	}
}

func (a *adjacency) ensureNode(addr string) *node {
	n, ok := a.nodes[addr]
	if !ok {
		n = &node{address: addr}
		a.nodes[addr] = n
	}
	return n
}

func (a *adjacency) mustNode(addr string) *node {
	n, ok := a.nodes[addr]
	if !ok {
		panic(fmt.Errorf("%w: address %q referenced by an edge is not a node", ErrGraphInconsistency, addr))
	}
	return n
}

// appendEdge links an edge whose endpoints already exist as nodes
func (a *adjacency) appendEdge(t models.Transfer) {
	from := a.mustNode(t.From)
	to := a.mustNode(t.To)
	idx := len(a.edges)
	a.edges = append(a.edges, t)
	from.out = append(from.out, idx)
	to.in = append(to.in, idx)
	if t.Hash != "" {
		a.byHash[t.Hash] = append(a.byHash[t.Hash], idx)
	}
}

// Store is the mutable, lock-guarded transaction graph
type Store struct {
	mu   sync.RWMutex
	adj  *adjacency
	legs map[string]int
}

// NewStore creates an empty graph
func NewStore() *Store {
	return &Store{
		adj:  newAdjacency(),
		legs: make(map[string]int),
	}
}

// AddTransfer inserts a transfer as a new edge, creating either endpoint on
// first reference. The hash is appended to the tx list of both endpoints
// (once for a self-loop). Duplicate hashes are not rejected.
func (s *Store) AddTransfer(t models.Transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(t)
}

// AddTransferOnce adds t unless an identical leg (see HasTransfer) is already
// present. The check and insert are atomic. Returns whether t was added.
func (s *Store) AddTransferOnce(t models.Transfer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Hash != "" && s.legs[legKey(t)] > 0 {
		return false
	}
	s.addLocked(t)
	return true
}

func (s *Store) addLocked(t models.Transfer) {
	from := s.adj.ensureNode(t.From)
	to := s.adj.ensureNode(t.To)
	s.adj.appendEdge(t)

	from.txs = append(from.txs, t.Hash)
	if to != from {
		to.txs = append(to.txs, t.Hash)
	}
	if t.Hash != "" {
		s.legs[legKey(t)]++
	}
}

// HasTransfer reports whether a transfer with the same hash, endpoints and
// amount was already added. Transfers without a hash are never matched.
func (s *Store) HasTransfer(t models.Transfer) bool {
	if t.Hash == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.legs[legKey(t)] > 0
}

// legKey identifies one leg of a transaction; a multi-party transaction
// shares its hash across legs
func legKey(t models.Transfer) string {
	return t.Hash + "|" + t.From + "|" + t.To + "|" + t.Amount.String()
}

// SetRiskScore overwrites the running risk score of an existing address.
// Scores are clamped to [0,100]; unknown addresses are ignored.
func (s *Store) SetRiskScore(addr string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.adj.nodes[addr]; ok {
		n.risk = clampScore(score)
	}
}

// RaiseRiskScore keeps the maximum of the current running score and score
func (s *Store) RaiseRiskScore(addr string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.adj.nodes[addr]; ok {
		if c := clampScore(score); c > n.risk {
			n.risk = c
		}
	}
}

// View runs fn against a consistent snapshot while holding the read lock.
// The *Graph must not escape fn.
func (s *Store) View(fn func(g *Graph)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&Graph{adj: s.adj})
}

func (s *Store) HasNode(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).HasNode(addr)
}

func (s *Store) Node(addr string) (models.AddressNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).Node(addr)
}

func (s *Store) Successors(addr string) []models.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).Successors(addr)
}

func (s *Store) Predecessors(addr string) []models.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).Predecessors(addr)
}

// TransfersOf returns every transfer touching addr, in insertion order
func (s *Store) TransfersOf(addr string) []models.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).TransfersOf(addr)
}

// TransactionContext returns the transfers touching addr plus the other legs
// of the transactions they belong to, in insertion order
func (s *Store) TransactionContext(addr string) []models.Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).TransactionContext(addr)
}

func (s *Store) Addresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).Addresses()
}

func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.adj.nodes)
}

func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.adj.edges)
}

// InducedSubgraph copies the subgraph restricted to addrs out of the store
func (s *Store) InducedSubgraph(addrs []string) *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&Graph{adj: s.adj}).InducedSubgraph(addrs)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Graph is a read-only accessor over a store snapshot or an induced subgraph.
// It performs no locking.
type Graph struct {
	adj *adjacency
}

func (g *Graph) HasNode(addr string) bool {
	_, ok := g.adj.nodes[addr]
	return ok
}

// Node returns a copy of the node for addr
func (g *Graph) Node(addr string) (models.AddressNode, bool) {
	n, ok := g.adj.nodes[addr]
	if !ok {
		return models.AddressNode{}, false
	}
	txs := make([]string, len(n.txs))
	copy(txs, n.txs)
	return models.AddressNode{Address: n.address, Transactions: txs, RiskScore: n.risk}, true
}

// Successors returns the outgoing edges of addr in insertion order
func (g *Graph) Successors(addr string) []models.Transfer {
	n, ok := g.adj.nodes[addr]
	if !ok {
		return nil
	}
	return g.collect(n.out)
}

// Predecessors returns the incoming edges of addr in insertion order
func (g *Graph) Predecessors(addr string) []models.Transfer {
	n, ok := g.adj.nodes[addr]
	if !ok {
		return nil
	}
	return g.collect(n.in)
}

// TransfersOf returns the incoming and outgoing edges of addr merged in
// insertion order. A self-loop is returned once.
func (g *Graph) TransfersOf(addr string) []models.Transfer {
	n, ok := g.adj.nodes[addr]
	if !ok {
		return nil
	}
	idx := make([]int, 0, len(n.out)+len(n.in))
	seen := make(map[int]bool, len(n.out)+len(n.in))
	for _, list := range [][]int{n.out, n.in} {
		for _, i := range list {
			if !seen[i] {
				seen[i] = true
				idx = append(idx, i)
			}
		}
	}
	sort.Ints(idx)
	return g.collect(idx)
}

// TransactionContext returns the transfers touching addr plus every other
// leg sharing a tx hash with one of them, in insertion order
func (g *Graph) TransactionContext(addr string) []models.Transfer {
	n, ok := g.adj.nodes[addr]
	if !ok {
		return nil
	}
	seen := make(map[int]bool)
	var idx []int
	visit := func(i int) {
		if !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	for _, list := range [][]int{n.out, n.in} {
		for _, i := range list {
			visit(i)
			if h := g.adj.edges[i].Hash; h != "" {
				for _, j := range g.adj.byHash[h] {
					visit(j)
				}
			}
		}
	}
	sort.Ints(idx)
	return g.collect(idx)
}

func (g *Graph) collect(idx []int) []models.Transfer {
	out := make([]models.Transfer, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.adj.edges[i])
	}
	return out
}

// Edges returns every edge in insertion order
func (g *Graph) Edges() []models.Transfer {
	out := make([]models.Transfer, len(g.adj.edges))
	copy(out, g.adj.edges)
	return out
}

// Addresses returns all node ids, sorted
func (g *Graph) Addresses() []string {
	out := make([]string, 0, len(g.adj.nodes))
	for addr := range g.adj.nodes {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) NodeCount() int { return len(g.adj.nodes) }
func (g *Graph) EdgeCount() int { return len(g.adj.edges) }

// InducedSubgraph returns an independent graph holding only the given
// addresses and the edges whose endpoints are both among them. Addresses
// that are not nodes are ignored. Edge order is preserved.
func (g *Graph) InducedSubgraph(addrs []string) *Graph {
	sub := newAdjacency()
	for _, addr := range addrs {
		n, ok := g.adj.nodes[addr]
		if !ok {
			continue
		}
		if _, dup := sub.nodes[addr]; dup {
			continue
		}
		txs := make([]string, len(n.txs))
		copy(txs, n.txs)
		sub.nodes[addr] = &node{address: addr, txs: txs, risk: n.risk}
	}
	for _, e := range g.adj.edges {
		_, fromIn := sub.nodes[e.From]
		_, toIn := sub.nodes[e.To]
		if fromIn && toIn {
			sub.appendEdge(e)
		}
	}
	return &Graph{adj: sub}
}
