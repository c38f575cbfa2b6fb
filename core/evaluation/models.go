// Package evaluation holds the evaluation records submitted by students and the
// aggregation that turns them into dashboard view-models.
package evaluation

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Target is the entity a comment refers to.
type Target string

const (
	TargetTeacher Target = "docente"
	TargetCourse  Target = "curso"
)

var Targets = []Target{TargetTeacher, TargetCourse}

func (t Target) IsValid() bool {
	return t == TargetTeacher || t == TargetCourse
}

// Sentiment is the polarity assigned to a comment by the classifier.
type Sentiment string

const (
	Positive Sentiment = "positivo"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negativo"
)

var Sentiments = []Sentiment{Positive, Neutral, Negative}

func (s Sentiment) IsValid() bool {
	return s == Positive || s == Neutral || s == Negative
}

// Filter selects comments by sentiment.
// FilterAll and the zero value keep every comment.
type Filter string

const FilterAll Filter = "all"

func (f Filter) IsValid() bool {
	return f == "" || f == FilterAll || Sentiment(f).IsValid()
}

func (f Filter) Matches(s Sentiment) bool {
	return f == "" || f == FilterAll || Sentiment(f) == s
}

type Rating struct {
	Criterion string  `json:"criterio" validate:"required,criterion"`
	Value     float64 `json:"valor" validate:"min=1,max=5"`
}

type Comment struct {
	Target    Target    `json:"tipo" validate:"required,oneof=docente curso"`
	Text      string    `json:"texto" validate:"required"`
	Sentiment Sentiment `json:"sentimiento" validate:"required,oneof=positivo neutral negativo"`
}

// Record is one student's evaluation of a teacher+course pair, as exchanged with the front-end.
type Record struct {
	ID       int       `json:"id"`
	Date     Date      `json:"fecha"`
	Ratings  []Rating  `json:"calificaciones" validate:"dive"`
	Comments []Comment `json:"comentarios" validate:"max=2,dive"`
}

// rating returns the value of the `criterion` rating, or 0 when the record does not have it.
func (r Record) rating(criterion string) float64 {
	for _, rt := range r.Ratings {
		if rt.Criterion == criterion {
			if !isFinite(rt.Value) {
				return 0
			}
			return rt.Value
		}
	}
	return 0
}

// Evaluation is a stored Record with its assignment and author.
type Evaluation struct {
	ID           int
	AssignmentID int
	StudentID    int // 0 for imported evaluations
	CreatedAt    time.Time
	Ratings      []Rating
	Comments     []Comment
}

// Record returns the evaluation in the records contract; ratings and comments are never null.
func (ev Evaluation) Record() Record {
	rec := Record{
		ID:       ev.ID,
		Date:     Date{ev.CreatedAt},
		Ratings:  ev.Ratings,
		Comments: ev.Comments,
	}
	if rec.Ratings == nil {
		rec.Ratings = []Rating{}
	}
	if rec.Comments == nil {
		rec.Comments = []Comment{}
	}
	return rec
}

// Date is the submission timestamp. It decodes both RFC 3339 timestamps and plain `YYYY-MM-DD` dates.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "fecha must be a string")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return errors.Errorf("fecha %q is not an ISO date", s)
	}
	d.Time = t
	return nil
}
