package domain

import (
	"sort"

	"github.com/fd1az/arbdetectd/business/pool/domain"
)

// Matrix is the sparse, symmetric pool_key -> pool_key -> score map.
// Entries with |score| below Threshold are never stored.
type Matrix struct {
	scores    map[domain.PoolKey]map[domain.PoolKey]float64
	Threshold float64
}

// NewMatrix creates an empty Matrix pruning at threshold.
func NewMatrix(threshold float64) *Matrix {
	return &Matrix{scores: make(map[domain.PoolKey]map[domain.PoolKey]float64), Threshold: threshold}
}

// Set records the correlation between a and b if |score| >= Threshold,
// maintaining symmetry; otherwise it removes any existing entry.
func (m *Matrix) Set(a, b domain.PoolKey, score float64) {
	if a == b {
		return
	}
	if score < 0 {
		score = -score
	}
	if score < m.Threshold {
		m.delete(a, b)
		m.delete(b, a)
		return
	}
	m.put(a, b, score)
	m.put(b, a, score)
}

func (m *Matrix) put(from, to domain.PoolKey, score float64) {
	if m.scores[from] == nil {
		m.scores[from] = make(map[domain.PoolKey]float64)
	}
	m.scores[from][to] = score
}

func (m *Matrix) delete(from, to domain.PoolKey) {
	if inner, ok := m.scores[from]; ok {
		delete(inner, to)
	}
}

// Neighbors returns the stored correlated pools for poolKey, sorted by
// score descending.
func (m *Matrix) Neighbors(poolKey domain.PoolKey) []ScoredPool {
	inner := m.scores[poolKey]
	out := make([]ScoredPool, 0, len(inner))
	for k, v := range inner {
		out = append(out, ScoredPool{PoolKey: k, Score: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ScoredPool pairs a pool key with a correlation (or similarity) score.
type ScoredPool struct {
	PoolKey domain.PoolKey
	Score   float64
}

// Export returns a flat snapshot of stored entries for warm-start
// persistence.
func (m *Matrix) Export() []Entry {
	var out []Entry
	for from, inner := range m.scores {
		for to, score := range inner {
			out = append(out, Entry{From: from, To: to, Score: score})
		}
	}
	return out
}

// Import replaces the matrix contents from a previously exported
// snapshot, applying the same threshold gate.
func (m *Matrix) Import(entries []Entry) {
	m.scores = make(map[domain.PoolKey]map[domain.PoolKey]float64)
	for _, e := range entries {
		m.Set(e.From, e.To, e.Score)
	}
}

// Entry is one exported matrix cell.
type Entry struct {
	From  domain.PoolKey
	To    domain.PoolKey
	Score float64
}
