package parser

import "testing"

func TestMergeConfidenceWeights(t *testing.T) {
	heuristic := ConfidenceScores{
		SectionPersonalInfo:   66.67,
		SectionWorkExperience: 70,
		SectionEducation:      70,
		SectionSkills:         75,
	}
	ai := ConfidenceScores{
		SectionPersonalInfo:   95,
		SectionWorkExperience: 88,
		SectionEducation:      90,
		SectionSkills:         92,
	}

	merged := MergeConfidence(heuristic, ai)

	want := ConfidenceScores{
		SectionPersonalInfo:   83.67,
		SectionWorkExperience: 80.8,
		SectionEducation:      82,
		SectionSkills:         85.2,
	}
	for _, section := range Sections {
		if merged[section] != want[section] {
			t.Errorf("section %s: got %.2f, want %.2f", section, merged[section], want[section])
		}
	}
}

func TestMergeConfidenceMissingSections(t *testing.T) {
	heuristic := ConfidenceScores{SectionSkills: 50}
	ai := ConfidenceScores{}

	merged := MergeConfidence(heuristic, ai)

	if got := merged[SectionSkills]; got != 20 {
		t.Errorf("skills: got %.2f, want 20 (missing ai score counts as zero)", got)
	}
	for _, section := range []Section{SectionPersonalInfo, SectionWorkExperience, SectionEducation} {
		if got := merged[section]; got != 0 {
			t.Errorf("section %s: got %.2f, want 0", section, got)
		}
	}
	if len(merged) != len(Sections) {
		t.Errorf("merged has %d sections, want %d", len(merged), len(Sections))
	}
}

func TestMergeConfidenceClampsOutOfRange(t *testing.T) {
	heuristic := ConfidenceScores{SectionSkills: 100}
	ai := ConfidenceScores{SectionSkills: 200}

	merged := MergeConfidence(heuristic, ai)

	if got := merged[SectionSkills]; got != 100 {
		t.Errorf("skills: got %.2f, want clamped 100", got)
	}

	heuristic = ConfidenceScores{SectionSkills: -40}
	ai = ConfidenceScores{SectionSkills: -10}
	merged = MergeConfidence(heuristic, ai)
	if got := merged[SectionSkills]; got != 0 {
		t.Errorf("skills: got %.2f, want clamped 0", got)
	}
}

func TestMergeConfidenceRoundsToTwoDecimals(t *testing.T) {
	heuristic := ConfidenceScores{SectionEducation: 33.33}
	ai := ConfidenceScores{SectionEducation: 66.67}

	merged := MergeConfidence(heuristic, ai)

	// 66.67*0.6 + 33.33*0.4 = 53.334 → 53.33
	if got := merged[SectionEducation]; got != 53.33 {
		t.Errorf("education: got %v, want 53.33", got)
	}
}
