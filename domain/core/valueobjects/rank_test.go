package valueobjects

import (
	"math"
	"testing"

	pkgerrors "socialcore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeRanks(t *testing.T) {
	assert.Equal(t, FirstRank, BackRank(1))
	assert.InDelta(t, 1.0/3, BackRank(2), 1e-12)
	assert.InDelta(t, 0.5, BackRank(3), 1e-12)
	assert.InDelta(t, -1.0/3, FrontRank(2), 1e-12)

	prevBack, prevFront := BackRank(1), FrontRank(1)
	for n := 2; n < 1000; n++ {
		assert.Greater(t, BackRank(n), prevBack)
		assert.Less(t, FrontRank(n), prevFront)
		assert.Less(t, BackRank(n), 1.0)
		assert.Greater(t, FrontRank(n), -1.0)
		prevBack, prevFront = BackRank(n), FrontRank(n)
	}
}

func TestRankBetween(t *testing.T) {
	mid, err := RankBetween(0, 1.0/3)
	require.NoError(t, err)
	assert.InDelta(t, 0.16666, mid, 1e-4)

	_, err = RankBetween(0.5, 0.5)
	assert.True(t, pkgerrors.IsRankExhausted(err))
}

func TestRankBetweenExhaustsInsteadOfDuplicating(t *testing.T) {
	lower, upper := 0.0, 1.0/3
	var err error
	for i := 0; i < 2000; i++ {
		var mid float64
		mid, err = RankBetween(lower, upper)
		if err != nil {
			break
		}
		require.Less(t, lower, mid)
		require.Less(t, mid, upper)
		upper = mid
	}
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRankExhausted(err))
	assert.Equal(t, lower, 0.0)
	assert.Greater(t, upper, 0.0)
	assert.False(t, math.IsNaN(upper))
}
