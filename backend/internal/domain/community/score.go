package community

import "math"

// RoundRating 把均分四舍五入到一位小数（对放大 10 倍后的值做 half-up）。
func RoundRating(avg float64) float64 {
	if avg <= 0 || math.IsNaN(avg) {
		return 0
	}
	return math.Floor(avg*10+0.5) / 10
}

// TrendingScore 计算热度分：avgRating × ln(ratingsCount + 1)。
// 对数压缩了评分数量的影响，单个 5 星不会压过大量 4 星。
func TrendingScore(avgRating float64, ratingsCount int64) float64 {
	if avgRating <= 0 || ratingsCount <= 0 {
		return 0
	}
	return avgRating * math.Log1p(float64(ratingsCount))
}
