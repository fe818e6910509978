package rwrouter

import "math/rand/v2"

// Rand is a source of uniformly distributed integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// runtimeRand draws from the math/rand/v2 top-level generator, which keeps per-thread state and is safe for concurrent use
// without a shared lock
type runtimeRand struct{}

func (runtimeRand) IntN(n int) int { return rand.IntN(n) }

// Policy maps a transaction's access mode to a backend id.
//
// Writes always go to the primary. Reads go to a uniformly random replica, or to the primary when there are none. Each
// call is an independent draw.
type Policy struct {
	rand Rand
}

// NewPolicy creates a Policy drawing from r; a nil r uses the runtime generator.
// A seeded r is only safe for concurrent use if r itself is.
func NewPolicy(r Rand) Policy {
	if r == nil {
		r = runtimeRand{}
	}
	return Policy{rand: r}
}

// Decide returns the backend id that should serve a connection request
func (p Policy) Decide(readOnly bool, replicaIDs []int, primaryID int) int {
	if !readOnly || len(replicaIDs) == 0 {
		return primaryID
	}
	r := p.rand
	if r == nil {
		r = runtimeRand{}
	}
	return replicaIDs[r.IntN(len(replicaIDs))]
}
