package parser

import "math"

// 融合权重：AI 校验占 0.6，启发式占 0.4。
const (
	aiWeight        = 0.6
	heuristicWeight = 0.4
)

// MergeConfidence 按固定权重融合两份置信度。
// 任一来源缺失某分区时按 0 参与计算而不是跳过；
// 结果收敛到 [0,100] 并保留两位小数。
func MergeConfidence(heuristic, ai ConfidenceScores) ConfidenceScores {
	merged := make(ConfidenceScores, len(Sections))
	for _, section := range Sections {
		value := ai[section]*aiWeight + heuristic[section]*heuristicWeight
		merged[section] = round2(clampScore(value))
	}
	return merged
}

func clampScore(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
