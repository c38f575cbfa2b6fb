package evaluation

// Selection holds the sentiment filter currently selected for each target.
type Selection struct {
	TeacherFilter Filter `query:"teacher_filter" json:"teacher_filter" validate:"sentiment_filter"`
	CourseFilter  Filter `query:"course_filter" json:"course_filter" validate:"sentiment_filter"`
}

func (sel Selection) filter(target Target) Filter {
	if target == TargetTeacher {
		return sel.TeacherFilter
	}
	return sel.CourseFilter
}

type CountsByTarget struct {
	Teacher SentimentCounts `json:"docente"`
	Course  SentimentCounts `json:"curso"`
}

type CommentsByTarget struct {
	Teacher []CommentView `json:"docente"`
	Course  []CommentView `json:"curso"`
}

// Dashboard is the view-model consumed by the charts and the comment review panels.
type Dashboard struct {
	CriterionLabels      []string         `json:"criterionLabels"`
	CriterionAverages    []float64        `json:"criterionAverages"`
	SentimentCounts      CountsByTarget   `json:"sentimentCounts"`
	SentimentPercentages CountsByTarget   `json:"sentimentPercentages"`
	FilteredComments     CommentsByTarget `json:"filteredComments"`
	TotalRecords         int              `json:"totalRecords"`
}

// Assemble builds the dashboard of `records` for the selected filters.
// Percentages are computed against the total record count, not the number of comments of the target.
func Assemble(records []Record, sel Selection) Dashboard {
	total := len(records)
	teacherCounts := TallySentiments(records, TargetTeacher)
	courseCounts := TallySentiments(records, TargetCourse)

	return Dashboard{
		CriterionLabels:   CriterionLabels(AllCriteria),
		CriterionAverages: CriterionAverages(CriterionKeys(AllCriteria), records),
		SentimentCounts: CountsByTarget{
			Teacher: teacherCounts,
			Course:  courseCounts,
		},
		SentimentPercentages: CountsByTarget{
			Teacher: teacherCounts.PercentOf(total),
			Course:  courseCounts.PercentOf(total),
		},
		FilteredComments: CommentsByTarget{
			Teacher: FilterComments(records, TargetTeacher, sel.filter(TargetTeacher)),
			Course:  FilterComments(records, TargetCourse, sel.filter(TargetCourse)),
		},
		TotalRecords: total,
	}
}
