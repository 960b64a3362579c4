package server

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateObstacles(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	obs := GenerateObstacles(500, 2400, 1800, rng)
	require.Len(t, obs, 500)

	angles := map[uint16]int{}
	for _, o := range obs {
		assert.GreaterOrEqual(t, o.Pos.X, 10.0)
		assert.LessOrEqual(t, o.Pos.X, 2390.0)
		assert.GreaterOrEqual(t, o.Pos.Y, 10.0)
		assert.LessOrEqual(t, o.Pos.Y, 1790.0)
		angles[o.Angle]++
	}
	for a := range angles {
		assert.Contains(t, []uint16{0, 90, 180, 270}, a)
	}
	assert.Len(t, angles, 4, "500 draws should hit every orientation")
}

func TestGenerateObstaclesDeterministicForSeed(t *testing.T) {
	a := GenerateObstacles(20, 800, 600, rand.New(rand.NewPCG(7, 7)))
	b := GenerateObstacles(20, 800, 600, rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, a, b)
}

func TestGenerateObstaclesEdgeCases(t *testing.T) {
	t.Run("zero count", func(t *testing.T) {
		obs := GenerateObstacles(0, 100, 100, nil)
		assert.NotNil(t, obs)
		assert.Empty(t, obs)
	})

	t.Run("narrow world collapses to midpoint", func(t *testing.T) {
		obs := GenerateObstacles(5, 12, 100, nil)
		require.Len(t, obs, 5)
		for _, o := range obs {
			assert.Equal(t, 6.0, o.Pos.X)
		}
	})
}
