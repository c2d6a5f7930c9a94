package parser

// EntityExtractionStage 负责流水线第二阶段：启发式实体抽取。
// 本阶段从不失败，最坏情况返回全空分区、全零置信度的实体集。
type EntityExtractionStage struct {
	heuristics EntityHeuristics
}

// NewEntityExtractionStage 构造实体提取阶段。
// heuristics 应为进程启动时构造好的共享实例。
func NewEntityExtractionStage(heuristics EntityHeuristics) *EntityExtractionStage {
	return &EntityExtractionStage{heuristics: heuristics}
}

// Extract 抽取实体并规整置信度：四个分区逐一补齐，缺失按 0 处理，
// 越界值收敛到 [0,100]。
func (s *EntityExtractionStage) Extract(text string) EntitySet {
	if s.heuristics == nil {
		return EmptyEntitySet()
	}

	entities := s.heuristics.Extract(text)

	scores := make(ConfidenceScores, len(Sections))
	for _, section := range Sections {
		scores[section] = round2(clampScore(entities.ConfidenceScores[section]))
	}
	entities.ConfidenceScores = scores

	if entities.WorkExperience == nil {
		entities.WorkExperience = []WorkExperience{}
	}
	if entities.Education == nil {
		entities.Education = []Education{}
	}

	return entities
}
