package lockmanager

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"latchkv/pkg/txn"
)

// waitsForGraph is an adjacency-list graph where an edge t1 -> t2
// means t1 is waiting on a lock t2 currently holds.
type waitsForGraph struct {
	mu    sync.Mutex
	edges map[uuid.UUID][]uuid.UUID
}

func newWaitsForGraph() *waitsForGraph {
	return &waitsForGraph{edges: map[uuid.UUID][]uuid.UUID{}}
}

// AddEdge records t1 -> t2.
func (g *waitsForGraph) AddEdge(t1, t2 uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[t1] = append(g.edges[t1], t2)
}

// RemoveEdge removes every t1 -> t2 edge. The original implementation
// (and the port it was ground on) only ever removed the first match
// due to a loop that compared its iterator against begin() on both
// sides of the condition, making the loop body unreachable; this
// removes all occurrences, which is what the comment describing the
// function always claimed it did.
func (g *waitsForGraph) RemoveEdge(t1, t2 uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := g.edges[t1]
	out := list[:0]
	for _, to := range list {
		if to != t2 {
			out = append(out, to)
		}
	}
	if len(out) == 0 {
		delete(g.edges, t1)
	} else {
		g.edges[t1] = out
	}
}

// reset clears the graph, used before each detection-interval rebuild.
func (g *waitsForGraph) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = map[uuid.UUID][]uuid.UUID{}
}

// nodes returns every transaction id with at least one outgoing or
// incoming edge, sorted for deterministic DFS traversal order.
func (g *waitsForGraph) nodes() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	for from, tos := range g.edges {
		seen[from] = true
		for _, to := range tos {
			seen[to] = true
		}
	}
	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (g *waitsForGraph) neighbors(id uuid.UUID) []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	edges := append([]uuid.UUID(nil), g.edges[id]...)
	sort.Slice(edges, func(i, j int) bool { return less(edges[i], edges[j]) })
	return edges
}

func less(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// findCycle runs DFS from every node in descending id order (so that
// when a cycle is found its highest-id member is discovered first)
// and returns the path from the back-edge's target to the current
// node, which is the cycle; the caller picks the largest id in it as
// the victim.
func (g *waitsForGraph) findCycle() ([]uuid.UUID, bool) {
	nodes := g.nodes()
	sort.Slice(nodes, func(i, j int) bool { return less(nodes[j], nodes[i]) }) // descending
	visited := map[uuid.UUID]bool{}
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		onStack := map[uuid.UUID]int{}
		var stack []uuid.UUID
		if cycle, found := g.dfs(start, visited, onStack, &stack); found {
			return cycle, true
		}
	}
	return nil, false
}

func (g *waitsForGraph) dfs(id uuid.UUID, visited map[uuid.UUID]bool, onStack map[uuid.UUID]int, stack *[]uuid.UUID) ([]uuid.UUID, bool) {
	visited[id] = true
	onStack[id] = len(*stack)
	*stack = append(*stack, id)
	for _, next := range g.neighbors(id) {
		if pos, inStack := onStack[next]; inStack {
			return append([]uuid.UUID(nil), (*stack)[pos:]...), true
		}
		if !visited[next] {
			if cycle, found := g.dfs(next, visited, onStack, stack); found {
				return cycle, true
			}
		}
	}
	delete(onStack, id)
	*stack = (*stack)[:len(*stack)-1]
	return nil, false
}

// victim returns the highest-id transaction in cycle.
func victim(cycle []uuid.UUID) uuid.UUID {
	v := cycle[0]
	for _, id := range cycle[1:] {
		if less(v, id) {
			v = id
		}
	}
	return v
}

// buildGraph rebuilds the manager's wait-for graph from scratch by
// scanning every table and row queue for ungranted-vs-granted
// incompatible-mode pairs.
func (m *Manager) buildGraph() {
	m.graph.reset()
	m.mu.Lock()
	tableQueues := make([]*requestQueue, 0, len(m.tableLocks))
	for _, q := range m.tableLocks {
		tableQueues = append(tableQueues, q)
	}
	rowQueues := make([]*requestQueue, 0, len(m.rowLocks))
	for _, q := range m.rowLocks {
		rowQueues = append(rowQueues, q)
	}
	m.mu.Unlock()

	addEdgesFromQueue := func(q *requestQueue) {
		q.mu.Lock()
		granted, waiting := q.snapshot()
		q.mu.Unlock()
		for _, w := range waiting {
			for _, g := range granted {
				if w.txn.ID() == g.txn.ID() {
					continue
				}
				if !compatible(w.mode, g.mode) {
					m.graph.AddEdge(w.txn.ID(), g.txn.ID())
				}
			}
		}
	}
	for _, q := range tableQueues {
		addEdgesFromQueue(q)
	}
	for _, q := range rowQueues {
		addEdgesFromQueue(q)
	}
}

// runDetector rebuilds the wait-for graph and aborts one cycle's
// victim every interval, until Stop is called.
func (m *Manager) runDetector(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.detectAndResolve()
		}
	}
}

func (m *Manager) detectAndResolve() {
	m.buildGraph()
	for {
		cycle, found := m.graph.findCycle()
		if !found {
			return
		}
		id := victim(cycle)
		m.txnsMu.Lock()
		t, ok := m.txns[id]
		m.txnsMu.Unlock()
		if !ok {
			return
		}
		t.SetState(txn.Aborted)
		m.ReleaseAll(t)
		m.wakeAll()
		m.removeNode(id)
	}
}

// wakeAll broadcasts every queue's condition variable so an aborted
// victim's blocked Lock call notices its new state and unwinds.
func (m *Manager) wakeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.tableLocks {
		q.cond.Broadcast()
	}
	for _, q := range m.rowLocks {
		q.cond.Broadcast()
	}
}

// removeNode drops every edge touching id from the graph so the next
// findCycle call doesn't immediately re-detect the same cycle.
func (m *Manager) removeNode(id uuid.UUID) {
	m.graph.mu.Lock()
	delete(m.graph.edges, id)
	for from, tos := range m.graph.edges {
		out := tos[:0]
		for _, to := range tos {
			if to != id {
				out = append(out, to)
			}
		}
		m.graph.edges[from] = out
	}
	m.graph.mu.Unlock()
}
