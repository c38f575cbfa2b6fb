package evaluation

import "strings"

// Criterion is a rated evaluation dimension.
type Criterion struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Target Target `json:"target"`
}

var (
	CourseCriteria = []Criterion{
		{Key: "metodologia", Label: "Metodología", Target: TargetCourse},
		{Key: "materiales", Label: "Materiales", Target: TargetCourse},
		{Key: "claridad", Label: "Claridad", Target: TargetCourse},
		{Key: "retroalimentacion", Label: "Retroalimentación", Target: TargetCourse},
	}

	TeacherCriteria = []Criterion{
		{Key: "satisfaccion_general", Label: "Satisfacción general", Target: TargetTeacher},
		{Key: "comunicacion", Label: "Comunicación", Target: TargetTeacher},
		{Key: "puntualidad", Label: "Puntualidad", Target: TargetTeacher},
		{Key: "respeto", Label: "Respeto", Target: TargetTeacher},
		{Key: "disponibilidad", Label: "Disponibilidad", Target: TargetTeacher},
	}

	// AllCriteria is the dashboard order: course criteria first, then teacher criteria.
	AllCriteria = append(append([]Criterion{}, CourseCriteria...), TeacherCriteria...)
)

func CriterionKeys(criteria []Criterion) []string {
	keys := make([]string, 0, len(criteria))
	for _, c := range criteria {
		keys = append(keys, c.Key)
	}
	return keys
}

func CriterionLabels(criteria []Criterion) []string {
	labels := make([]string, 0, len(criteria))
	for _, c := range criteria {
		labels = append(labels, c.Label)
	}
	return labels
}

func IsCriterion(key string) bool {
	for _, c := range AllCriteria {
		if c.Key == key {
			return true
		}
	}
	return false
}

// ScaleLevel is one step of the five-point qualitative scale.
type ScaleLevel struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

var Scale = []ScaleLevel{
	{Label: "pesimo", Value: 1},
	{Label: "malo", Value: 2},
	{Label: "regular", Value: 3},
	{Label: "bueno", Value: 4},
	{Label: "excelente", Value: 5},
}

var accentReplacer = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")

// ParseScale maps a qualitative label (eg. "Pésimo", "bueno") to its 1..5 value.
func ParseScale(label string) (int, bool) {
	label = accentReplacer.Replace(strings.ToLower(strings.TrimSpace(label)))
	for _, lvl := range Scale {
		if lvl.Label == label {
			return lvl.Value, true
		}
	}
	return 0, false
}
