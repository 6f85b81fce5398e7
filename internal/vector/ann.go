package vector

import "sort"

// annGraph is a single-layer navigable small-world graph: each node keeps
// a bounded neighbor list chosen greedily at insert time, and search is a
// greedy best-first expansion from an entry point. This approximates
// HNSW's graph-navigation idea (spec §4.3: "approximate (HNSW-style)
// top-k search") without HNSW's multi-layer skip structure — at the
// spec's per-segment cap of ~8192 points a single layer keeps insert and
// search cost low without the added bookkeeping of layer assignment,
// which would be disproportionate machinery for this segment size.
type annGraph struct {
	metric Metric

	vectors    map[int][]float32
	neighbors  map[int][]int
	tombstoned map[int]bool
	entryPoint int
	hasEntry   bool

	maxNeighbors int
	efSearch     int
}

func newANNGraph(metric Metric) *annGraph {
	return &annGraph{
		metric:       metric,
		vectors:      make(map[int][]float32),
		neighbors:    make(map[int][]int),
		tombstoned:   make(map[int]bool),
		maxNeighbors: 16,
		efSearch:     64,
	}
}

type scoredNode struct {
	idx   int
	score float32
}

// Insert adds idx/vec to the graph, wiring it to its approximate nearest
// existing neighbors and pruning each affected neighbor list back to
// maxNeighbors by score.
func (g *annGraph) Insert(idx int, vec []float32) {
	g.vectors[idx] = vec
	g.neighbors[idx] = nil

	if !g.hasEntry {
		g.entryPoint = idx
		g.hasEntry = true
		return
	}

	candidates := g.searchInternal(vec, g.maxNeighbors, g.efSearch, -1)
	for _, c := range candidates {
		g.connect(idx, c.idx)
	}

	// Rehome the entry point to the most recently inserted node on every
	// insert so the graph doesn't drift away from live regions as old
	// entry points get tombstoned.
	g.entryPoint = idx
}

func (g *annGraph) connect(a, b int) {
	g.neighbors[a] = pruneNeighbors(append(g.neighbors[a], b), g.vectors[a], g.vectors, g.metric, g.maxNeighbors)
	g.neighbors[b] = pruneNeighbors(append(g.neighbors[b], a), g.vectors[b], g.vectors, g.metric, g.maxNeighbors)
}

func pruneNeighbors(candidates []int, self []float32, vectors map[int][]float32, metric Metric, max int) []int {
	seen := make(map[int]bool, len(candidates))
	unique := candidates[:0:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	sort.Slice(unique, func(i, j int) bool {
		return score(metric, self, vectors[unique[i]]) > score(metric, self, vectors[unique[j]])
	})
	if len(unique) > max {
		unique = unique[:max]
	}
	return unique
}

// Remove tombstones idx: it is skipped by search but its edges are kept
// so neighboring nodes remain reachable (physical removal happens at
// compaction, spec §4.3).
func (g *annGraph) Remove(idx int) {
	g.tombstoned[idx] = true
}

// Search returns up to k nearest live neighbors to query.
func (g *annGraph) Search(query []float32, k int) []scoredNode {
	ef := g.efSearch
	if k > ef {
		ef = k * 2
	}
	results := g.searchInternal(query, k, ef, -1)
	return results
}

// searchInternal runs a greedy best-first search from the entry point,
// expanding up to ef candidates, and returns the top n by score
// (tombstoned nodes and excludeIdx are skipped). If the graph is empty,
// it returns nil.
func (g *annGraph) searchInternal(query []float32, n, ef, excludeIdx int) []scoredNode {
	if !g.hasEntry || len(g.vectors) == 0 {
		return nil
	}

	visited := map[int]bool{}
	var candidates []scoredNode // min-heap-ish via sort, small ef so linear ops are fine
	var result []scoredNode

	push := func(idx int) {
		if visited[idx] || idx == excludeIdx {
			return
		}
		visited[idx] = true
		s := score(g.metric, query, g.vectors[idx])
		candidates = append(candidates, scoredNode{idx: idx, score: s})
		if !g.tombstoned[idx] {
			result = append(result, scoredNode{idx: idx, score: s})
		}
	}

	start := g.entryPoint
	if g.tombstoned[start] {
		// Any live vertex works as a fallback entry point.
		for idx := range g.vectors {
			if !g.tombstoned[idx] {
				start = idx
				break
			}
		}
	}
	push(start)

	for frontier := 0; frontier < len(candidates) && len(visited) < ef; frontier++ {
		cur := candidates[frontier]
		for _, nb := range g.neighbors[cur.idx] {
			if len(visited) >= ef {
				break
			}
			push(nb)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].score != result[j].score {
			return result[i].score > result[j].score
		}
		return false
	})
	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result
}

// Len returns the number of nodes (live and tombstoned) in the graph.
func (g *annGraph) Len() int {
	return len(g.vectors)
}
