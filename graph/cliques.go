package graph

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"

	"massa-api/logger"
	"massa-api/models"
)

// computeCliques flags stale blocks and enumerates the maximal sets of mutually
// compatible non-final blocks.
//
// Two non-final blocks of the same thread conflict when neither is an ancestor of
// the other, and a block inherits every conflict of its ancestors. A non-final
// block is stale when it, or one of its non-final ancestors, does not come after
// the last final block of its thread, or when its own ancestry conflicts.
func computeCliques(s *Snapshot, maxCliques int) []models.Clique {
	var live []*BlockEntry
	position := make(map[models.BlockId]int)
	stale := make(map[models.BlockId]bool)
	for _, e := range s.ordered {
		if e.Final {
			continue
		}
		isStale := false
		if lf := s.lastFinal[e.Slot().Thread]; lf != nil && !lf.Slot().Less(e.Slot()) {
			isStale = true
		}
		for _, pid := range e.Block.Header.Content.Parents {
			if stale[pid] {
				isStale = true
			}
		}
		if isStale {
			stale[e.ID] = true
			e.Stale = true
			continue
		}
		position[e.ID] = len(live)
		live = append(live, e)
	}

	n := uint(len(live))
	anc := make([]*bitset.BitSet, n)
	for i, e := range live {
		anc[i] = bitset.New(n)
		anc[i].Set(uint(i))
		for _, pid := range e.Block.Header.Content.Parents {
			if pi, ok := position[pid]; ok {
				anc[i].InPlaceUnion(anc[pi])
			}
		}
	}

	direct := make([]*bitset.BitSet, n)
	for i := range live {
		direct[i] = bitset.New(n)
	}
	for i := uint(0); i < n; i++ {
		for j := i + 1; j < n; j++ {
			if live[i].Slot().Thread != live[j].Slot().Thread {
				continue
			}
			if !anc[j].Test(i) && !anc[i].Test(j) {
				direct[i].Set(j)
				direct[j].Set(i)
			}
		}
	}

	inherited := make([]*bitset.BitSet, n)
	valid := bitset.New(n)
	for i := uint(0); i < n; i++ {
		inherited[i] = bitset.New(n)
		for a, ok := anc[i].NextSet(0); ok; a, ok = anc[i].NextSet(a + 1) {
			inherited[i].InPlaceUnion(direct[a])
		}
		if inherited[i].IntersectionCardinality(anc[i]) > 0 {
			live[i].Stale = true
			continue
		}
		valid.Set(i)
	}

	compat := make([]*bitset.BitSet, n)
	for i := uint(0); i < n; i++ {
		compat[i] = bitset.New(n)
		if !valid.Test(i) {
			continue
		}
		for j, ok := valid.NextSet(0); ok; j, ok = valid.NextSet(j + 1) {
			if j != i && inherited[i].IntersectionCardinality(anc[j]) == 0 {
				compat[i].Set(j)
			}
		}
	}

	enum := &cliqueEnumerator{compat: compat, limit: maxCliques}
	enum.run(bitset.New(n), valid.Clone(), bitset.New(n))
	if enum.truncated {
		logger.Logger.Warn("Clique enumeration truncated",
			zap.Int("limit", maxCliques),
			zap.Int("candidates", int(n)))
	}

	candidates := make([]*cliqueCandidate, 0, len(enum.found))
	for _, members := range enum.found {
		c := &cliqueCandidate{}
		for v, ok := members.NextSet(0); ok; v, ok = members.NextSet(v + 1) {
			c.members = append(c.members, live[v])
			c.fitness += live[v].Block.Fitness()
		}
		c.sortedIDs = make([]models.BlockId, len(c.members))
		for k, m := range c.members {
			c.sortedIDs[k] = m.ID
		}
		sort.Slice(c.sortedIDs, func(a, b int) bool {
			return c.sortedIDs[a].Compare(c.sortedIDs[b].Hash) < 0
		})
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(a, b int) bool {
		return compareCliques(candidates[a], candidates[b]) > 0
	})

	cliques := make([]models.Clique, len(candidates))
	for idx, c := range candidates {
		ids := make([]models.BlockId, len(c.members))
		for k, m := range c.members {
			ids[k] = m.ID
			m.Cliques = append(m.Cliques, idx)
			if idx == 0 {
				m.InBlockclique = true
			}
		}
		cliques[idx] = models.Clique{
			BlockIds:      ids,
			Fitness:       c.fitness,
			IsBlockclique: idx == 0,
		}
	}
	return cliques
}

type cliqueCandidate struct {
	members   []*BlockEntry // slot order
	sortedIDs []models.BlockId
	fitness   uint64
}

// compareCliques returns a positive value when a is preferred over b: higher
// fitness first, then more blocks, then the smaller sorted id list.
func compareCliques(a, b *cliqueCandidate) int {
	if a.fitness != b.fitness {
		if a.fitness > b.fitness {
			return 1
		}
		return -1
	}
	if len(a.sortedIDs) != len(b.sortedIDs) {
		return len(a.sortedIDs) - len(b.sortedIDs)
	}
	for k := range a.sortedIDs {
		if c := a.sortedIDs[k].Compare(b.sortedIDs[k].Hash); c != 0 {
			return -c
		}
	}
	return 0
}

// cliqueEnumerator is Bron-Kerbosch with pivoting over a compatibility graph
type cliqueEnumerator struct {
	compat    []*bitset.BitSet
	limit     int
	found     []*bitset.BitSet
	truncated bool
}

func (c *cliqueEnumerator) run(r, p, x *bitset.BitSet) {
	if c.limit > 0 && len(c.found) >= c.limit {
		c.truncated = true
		return
	}
	if p.None() && x.None() {
		c.found = append(c.found, r.Clone())
		return
	}

	pivot, best := uint(0), -1
	union := p.Union(x)
	for u, ok := union.NextSet(0); ok; u, ok = union.NextSet(u + 1) {
		if cnt := int(p.IntersectionCardinality(c.compat[u])); cnt > best {
			pivot, best = u, cnt
		}
	}

	candidates := p.Difference(c.compat[pivot])
	for v, ok := candidates.NextSet(0); ok; v, ok = candidates.NextSet(v + 1) {
		nextR := r.Clone()
		nextR.Set(v)
		c.run(nextR, p.Intersection(c.compat[v]), x.Intersection(c.compat[v]))
		p.Clear(v)
		x.Set(v)
	}
}
