package runtime

import (
	"math/rand"

	"github.com/propapanda/dinky/pkg/domain"
)

// pickAlt selects one alternative per the block's sequencing strategy,
// driven by the visit count V of the block's label (or of the enclosing
// stitch when unlabeled):
//
//	stopping  min(V, N)
//	cycle     ((V-1) mod N) + 1
//	once      V while V <= N, then nothing
//
// Shuffled blocks permute the alternatives deterministically with a seed
// keyed per address, reseeding whenever the strategy wraps (V mod N == 1).
func (e *Engine) pickAlt(b *domain.Block, at domain.Path) []*domain.Block {
	n := len(b.Alts)
	if n == 0 {
		return nil
	}

	key := at.Knot + "." + at.Stitch
	if b.Label != "" {
		key += "." + b.Label
	}
	v := e.state.Visits[key]
	if v < 1 {
		v = 1
	}

	var idx int
	switch b.Seq {
	case domain.SeqCycle:
		idx = ((v - 1) % n) + 1
	case domain.SeqOnce:
		if v > n {
			return nil
		}
		idx = v
	default: // stopping
		idx = v
		if idx > n {
			idx = n
		}
	}

	if b.Shuffle {
		seedKey := at.Knot + "." + at.Stitch + ":" + b.Label
		if n == 1 || v%n == 1 {
			if _, seeded := e.state.Seeds[seedKey]; !seeded || v%n == 1 {
				e.state.Seeds[seedKey] = e.rng.Int63()
			}
		}
		perm := rand.New(rand.NewSource(e.state.Seeds[seedKey])).Perm(n)
		idx = perm[idx-1] + 1
	}

	return b.Alts[idx-1]
}
