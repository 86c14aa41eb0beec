// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import (
	"math/big"
	"sort"
)

// rankAndTruncate implements Step B of §4.4: sort the matched pool by
// (priority DESC, timestamp DESC), keep the first N = min(len(credit),
// len(pool)), and truncate credit to length N. pool is sorted in place;
// the returned slices alias pool's backing array and credit's.
func rankAndTruncate(pool []*Impression, credit []float64) ([]*Impression, []float64) {
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Priority != pool[j].Priority {
			return pool[i].Priority > pool[j].Priority
		}
		return pool[i].Timestamp.After(pool[j].Timestamp)
	})

	n := len(credit)
	if len(pool) < n {
		n = len(pool)
	}
	return pool[:n], credit[:n]
}

// fairlyAllocateCredit implements Step C of §4.4: given a positive
// credit weight per surviving impression and a total integer value, it
// returns an integer vector of the same length that sums exactly to
// value, with E[out[i]] == value*credit[i]/sum(credit).
//
// The real-valued weights w_i = value*credit_i/sum(credit) are computed
// in exact rational arithmetic (math/big.Rat) per §9's guidance against
// naive floating-point summation. Each w_i is split into an integer
// floor and a fractional remainder; the remainders are then resolved to
// 0 or 1 via pairwise dependent rounding (Gandhi/Khuller/Parthasarathy/
// Srinivasan): a "leader" index carries a combined fractional mass
// forward, merging with one new index at a time, until the fractional
// mass exactly hits an integer boundary — at which point the mass is
// committed as the corresponding +1 and leadership passes to whichever
// index just caused the boundary to be crossed. Because every merge step
// preserves the pair's combined mass exactly, the final vector's sum is
// exactly value in exact arithmetic; because each step's two outcomes
// are weighted so the post-step expectation equals the pre-step value,
// the scheme preserves E[out[i]] = w_i for every i.
func fairlyAllocateCredit(credit []float64, value int64, rng Rng) ([]int64, error) {
	n := len(credit)
	if n == 0 {
		return nil, invalidState("fairlyAllocateCredit", "credit vector must not be empty")
	}

	weights := make([]*big.Rat, n)
	sum := new(big.Rat)
	for i, c := range credit {
		w := new(big.Rat).SetFloat64(c)
		if w == nil || w.Sign() <= 0 {
			return nil, invalidState("fairlyAllocateCredit", "credit[%d] = %v is not a positive finite number", i, c)
		}
		weights[i] = w
		sum.Add(sum, w)
	}

	valueRat := new(big.Rat).SetInt64(value)

	out := make([]int64, n)
	fracs := make([]*big.Rat, n)
	for i, w := range weights {
		wi := new(big.Rat).Mul(valueRat, new(big.Rat).Quo(w, sum))
		floor := ratFloor(wi)
		out[i] = floor
		fracs[i] = new(big.Rat).Sub(wi, new(big.Rat).SetInt64(floor))
	}

	one := big.NewRat(1, 1)
	leader := 0
	leaderFrac := new(big.Rat).Set(fracs[0])

	for i := 1; i < n; i++ {
		p := leaderFrac
		q := fracs[i]

		if p.Sign() == 0 && q.Sign() == 0 {
			continue
		}

		combined := new(big.Rat).Add(p, q)
		draw := rng.Float64()

		if combined.Cmp(one) > 0 {
			deltaLeader := new(big.Rat).Sub(one, p)
			deltaI := new(big.Rat).Sub(one, q)
			denom := new(big.Rat).Add(deltaLeader, deltaI)
			p1, _ := new(big.Rat).Quo(deltaI, denom).Float64()
			next := new(big.Rat).Sub(combined, one)

			if draw < p1 {
				out[leader]++
				leaderFrac = next
				leader = i
			} else {
				out[i]++
				leaderFrac = next
			}
			continue
		}

		deltaLeader := new(big.Rat).Neg(p)
		deltaI := new(big.Rat).Neg(q)
		denom := new(big.Rat).Add(deltaLeader, deltaI)
		p1, _ := new(big.Rat).Quo(deltaI, denom).Float64()

		if draw < p1 {
			leaderFrac = combined
			leader = i
		} else {
			leaderFrac = combined
		}
	}

	// The merge loop's invariant guarantees leaderFrac is exactly 0 or 1
	// by the time every index has been folded in (the total fractional
	// mass sum(fracs) is an integer because value and every floor are
	// integers), and every step above is exact big.Rat arithmetic, so no
	// rounding tolerance is needed here.
	out[leader] += ratFloor(leaderFrac)

	return out, nil
}

// ratFloor returns floor(r) for a non-negative rational.
func ratFloor(r *big.Rat) int64 {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	return q.Int64()
}
