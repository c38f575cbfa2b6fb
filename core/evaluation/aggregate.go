package evaluation

import "math"

// CriterionAverages returns, for each key in order, the mean rating across all records rounded to one decimal.
// Records lacking a key contribute 0 and still count in the denominator.
// An empty record list yields all zeros.
func CriterionAverages(keys []string, records []Record) []float64 {
	avgs := make([]float64, len(keys))
	n := len(records)
	if n == 0 {
		return avgs
	}
	for i, key := range keys {
		var sum float64
		for _, rec := range records {
			sum += rec.rating(key)
		}
		avgs[i] = round(sum/float64(n), 1)
	}
	return avgs
}

// SentimentCounts holds one value per sentiment bucket.
type SentimentCounts struct {
	Positive int `json:"positivo"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negativo"`
}

func (c *SentimentCounts) add(s Sentiment) {
	switch s {
	case Positive:
		c.Positive++
	case Neutral:
		c.Neutral++
	case Negative:
		c.Negative++
	}
}

func (c SentimentCounts) Total() int {
	return c.Positive + c.Neutral + c.Negative
}

// Get returns the bucket of `s` (0 for unknown sentiments).
func (c SentimentCounts) Get(s Sentiment) int {
	switch s {
	case Positive:
		return c.Positive
	case Neutral:
		return c.Neutral
	case Negative:
		return c.Negative
	}
	return 0
}

// PercentOf returns round(count*100/total) per bucket; all zeros when total is 0.
func (c SentimentCounts) PercentOf(total int) SentimentCounts {
	return SentimentCounts{
		Positive: percent(c.Positive, total),
		Neutral:  percent(c.Neutral, total),
		Negative: percent(c.Negative, total),
	}
}

// TallySentiments counts the comments of `target` per sentiment across all records.
func TallySentiments(records []Record, target Target) SentimentCounts {
	var counts SentimentCounts
	for _, rec := range records {
		for _, cmt := range rec.Comments {
			if cmt.Target == target {
				counts.add(cmt.Sentiment)
			}
		}
	}
	return counts
}

type CommentView struct {
	Text      string    `json:"texto"`
	Sentiment Sentiment `json:"sentimiento"`
}

// FilterComments flattens the comments of `target` matching `filter`, in record order then comment order.
func FilterComments(records []Record, target Target, filter Filter) []CommentView {
	comments := make([]CommentView, 0)
	for _, rec := range records {
		for _, cmt := range rec.Comments {
			if cmt.Target == target && filter.Matches(cmt.Sentiment) {
				comments = append(comments, CommentView{Text: cmt.Text, Sentiment: cmt.Sentiment})
			}
		}
	}
	return comments
}

func percent(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count*100) / float64(total)))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
