package valueobjects

import (
	pkgerrors "socialcore/pkg/errors"
)

// FirstRank is the rank of the first member of an empty collection.
const FirstRank = 0.0

// MinRank bounds every rank from below, exclusively.
const MinRank = -1.0

// Ranks live in the open interval (-1, 1). Edge insertions are driven by a collection's
// rankCount, which only grows, so each new edge rank lands strictly beyond every rank
// handed out before it.

// BackRank returns the rank for appending when rankCount (after counting this
// insertion) is n. n == 1 yields FirstRank.
func BackRank(n int) float64 {
	return 1 - 2/float64(n+1)
}

// FrontRank mirrors BackRank for prepending.
func FrontRank(n int) float64 {
	if n <= 1 {
		return FirstRank
	}
	return -BackRank(n)
}

// RankBetween returns the midpoint of two neighbours, or a rank-exhausted error when
// floating point can no longer represent a value strictly between them.
func RankBetween(lower, upper float64) (float64, error) {
	if !(lower < upper) {
		return 0, pkgerrors.NewRankExhaustedError(lower, upper)
	}
	mid := lower + (upper-lower)/2
	if !(lower < mid && mid < upper) {
		return 0, pkgerrors.NewRankExhaustedError(lower, upper)
	}
	return mid, nil
}
