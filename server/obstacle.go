package server

import "math/rand/v2"

// obstacleMargin 障碍物与地图边缘的最小距离
const obstacleMargin = 10

var obstacleAngles = [...]uint16{0, 90, 180, 270}

// GenerateObstacles 在 [10, w-10] x [10, h-10] 内均匀随机生成 n 个障碍物
// 某一维不足 20 时退化为该维中点
func GenerateObstacles(n int, width, height float64, rng *rand.Rand) []ObstacleRecord {
	if n <= 0 {
		return []ObstacleRecord{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	out := make([]ObstacleRecord, n)
	for i := range out {
		out[i] = ObstacleRecord{
			Pos: Vec2{
				X: uniform(rng, obstacleMargin, width-obstacleMargin),
				Y: uniform(rng, obstacleMargin, height-obstacleMargin),
			},
			Angle: obstacleAngles[rng.IntN(len(obstacleAngles))],
		}
	}
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return (lo + hi) / 2
	}
	return lo + rng.Float64()*(hi-lo)
}
