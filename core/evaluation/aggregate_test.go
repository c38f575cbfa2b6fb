package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rec(ratings map[string]float64, comments ...Comment) Record {
	r := Record{Comments: comments}
	for _, c := range AllCriteria {
		if v, ok := ratings[c.Key]; ok {
			r.Ratings = append(r.Ratings, Rating{Criterion: c.Key, Value: v})
		}
	}
	return r
}

func cmt(target Target, text string, s Sentiment) Comment {
	return Comment{Target: target, Text: text, Sentiment: s}
}

func TestCriterionAverages(t *testing.T) {
	keys := []string{"metodologia", "puntualidad"}

	tests := []struct {
		name    string
		keys    []string
		records []Record
		want    []float64
	}{
		{name: "no records", keys: keys, want: []float64{0, 0}},
		{name: "empty records", keys: keys, records: []Record{}, want: []float64{0, 0}},
		{name: "no keys", keys: []string{}, records: []Record{rec(map[string]float64{"metodologia": 5})}, want: []float64{}},
		{
			name:    "single record",
			keys:    keys,
			records: []Record{rec(map[string]float64{"metodologia": 4, "puntualidad": 3})},
			want:    []float64{4, 3},
		},
		{
			name:    "absent rating counts as 0",
			keys:    []string{"metodologia"},
			records: []Record{rec(map[string]float64{"metodologia": 5}), rec(nil)},
			want:    []float64{2.5},
		},
		{
			name: "rounded to one decimal",
			keys: keys,
			records: []Record{
				rec(map[string]float64{"metodologia": 5, "puntualidad": 1}),
				rec(map[string]float64{"metodologia": 4, "puntualidad": 1}),
				rec(map[string]float64{"metodologia": 4, "puntualidad": 2}),
			},
			want: []float64{4.3, 1.3},
		},
		{
			name:    "keys keep input order",
			keys:    []string{"puntualidad", "metodologia"},
			records: []Record{rec(map[string]float64{"metodologia": 2, "puntualidad": 5})},
			want:    []float64{5, 2},
		},
		{
			name:    "unknown key",
			keys:    []string{"lol"},
			records: []Record{rec(map[string]float64{"metodologia": 2})},
			want:    []float64{0},
		},
		{
			name: "non finite value counts as 0",
			keys: []string{"metodologia"},
			records: []Record{
				{Ratings: []Rating{{Criterion: "metodologia", Value: math.NaN()}}},
				{Ratings: []Rating{{Criterion: "metodologia", Value: math.Inf(1)}}},
				rec(map[string]float64{"metodologia": 3}),
			},
			want: []float64{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CriterionAverages(tt.keys, tt.records))
		})
	}
}

func TestTallySentiments(t *testing.T) {
	records := []Record{
		rec(nil, cmt(TargetTeacher, "a", Positive), cmt(TargetCourse, "b", Negative)),
		rec(nil, cmt(TargetTeacher, "c", Positive)),
		rec(nil),
		rec(nil, cmt(TargetCourse, "d", Neutral), cmt(TargetTeacher, "e", Negative)),
	}

	tests := []struct {
		name    string
		records []Record
		target  Target
		want    SentimentCounts
	}{
		{name: "no records", target: TargetTeacher, want: SentimentCounts{}},
		{name: "teacher", records: records, target: TargetTeacher, want: SentimentCounts{Positive: 2, Negative: 1}},
		{name: "course", records: records, target: TargetCourse, want: SentimentCounts{Neutral: 1, Negative: 1}},
		{
			name:    "unknown sentiment is not counted",
			records: []Record{rec(nil, cmt(TargetCourse, "x", "lol"))},
			target:  TargetCourse,
			want:    SentimentCounts{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TallySentiments(tt.records, tt.target)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("order independent", func(t *testing.T) {
		reversed := make([]Record, len(records))
		for i := range records {
			reversed[len(records)-1-i] = records[i]
		}
		assert.Equal(t, TallySentiments(records, TargetTeacher), TallySentiments(reversed, TargetTeacher))
	})

	t.Run("buckets sum to the comments of the target", func(t *testing.T) {
		for _, target := range Targets {
			var n int
			for _, r := range records {
				for _, c := range r.Comments {
					if c.Target == target {
						n++
					}
				}
			}
			assert.Equal(t, n, TallySentiments(records, target).Total())
		}
	})
}

func TestSentimentCounts_PercentOf(t *testing.T) {
	tests := []struct {
		name   string
		counts SentimentCounts
		total  int
		want   SentimentCounts
	}{
		{name: "no records", counts: SentimentCounts{}, total: 0, want: SentimentCounts{}},
		{name: "all", counts: SentimentCounts{Positive: 1, Neutral: 1, Negative: 2}, total: 4, want: SentimentCounts{Positive: 25, Neutral: 25, Negative: 50}},
		// divisor is the record count: buckets do not sum to 100 when a record has no comment
		{name: "missing comment", counts: SentimentCounts{Positive: 1, Neutral: 1}, total: 3, want: SentimentCounts{Positive: 33, Neutral: 33}},
		{name: "rounds half up", counts: SentimentCounts{Positive: 1}, total: 8, want: SentimentCounts{Positive: 13}},
		{name: "two thirds", counts: SentimentCounts{Negative: 2}, total: 3, want: SentimentCounts{Negative: 67}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.counts.PercentOf(tt.total))
		})
	}
}

func TestFilterComments(t *testing.T) {
	records := []Record{
		rec(nil, cmt(TargetTeacher, "t1", Positive), cmt(TargetCourse, "c1", Negative)),
		rec(nil, cmt(TargetCourse, "c2", Positive), cmt(TargetTeacher, "t2", Neutral)),
		rec(nil),
		rec(nil, cmt(TargetTeacher, "t1", Positive)),
	}

	tests := []struct {
		name   string
		target Target
		filter Filter
		want   []CommentView
	}{
		{
			name: "all teacher", target: TargetTeacher, filter: FilterAll,
			want: []CommentView{{"t1", Positive}, {"t2", Neutral}, {"t1", Positive}},
		},
		{
			name: "no filter is all", target: TargetTeacher, filter: "",
			want: []CommentView{{"t1", Positive}, {"t2", Neutral}, {"t1", Positive}},
		},
		{name: "teacher positive (no dedup)", target: TargetTeacher, filter: Filter(Positive), want: []CommentView{{"t1", Positive}, {"t1", Positive}}},
		{name: "teacher negative", target: TargetTeacher, filter: Filter(Negative), want: []CommentView{}},
		{name: "course all", target: TargetCourse, filter: FilterAll, want: []CommentView{{"c1", Negative}, {"c2", Positive}}},
		{name: "course negative", target: TargetCourse, filter: Filter(Negative), want: []CommentView{{"c1", Negative}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterComments(records, tt.target, tt.filter))
		})
	}

	t.Run("no records", func(t *testing.T) {
		got := FilterComments(nil, TargetCourse, FilterAll)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}
