package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/evaluo/core/evaluation"
)

type evaluationRow struct {
	ID           int       `db:"id"`
	AssignmentID int       `db:"assignment_id"`
	StudentID    null.Int  `db:"student_id"`
	CreatedAt    time.Time `db:"created_at"`
}

type ratingRow struct {
	EvaluationID int     `db:"evaluation_id"`
	Position     int     `db:"position"`
	Criterion    string  `db:"criterion"`
	Value        float64 `db:"value"`
}

type commentRow struct {
	EvaluationID int    `db:"evaluation_id"`
	Position     int    `db:"position"`
	Target       string `db:"target"`
	Text         string `db:"text"`
	Sentiment    string `db:"sentiment"`
}

type evaluationRepository struct {
	db *sqlx.DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *sqlx.DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

// CreateEvaluation stores the evaluation with its ratings and comments in a single transaction.
func (repo *evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	evs, err := repo.CreateEvaluations(ctx, []evaluation.Evaluation{ev})
	if err != nil {
		return evaluation.Evaluation{}, err
	}
	return evs[0], nil
}

// CreateEvaluations stores the evaluations with their ratings and comments in a single transaction.
func (repo *evaluationRepository) CreateEvaluations(ctx context.Context, evs []evaluation.Evaluation) ([]evaluation.Evaluation, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]evaluation.Evaluation, 0, len(evs))
	for _, ev := range evs {
		if ev, err = insertEvaluation(ctx, tx, ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing evaluations")
	}
	return out, nil
}

func insertEvaluation(ctx context.Context, tx *sqlx.Tx, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	var err error
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.ID, err = insert(ctx, tx, `INSERT INTO evaluations (assignment_id, student_id, created_at)
		VALUES (:assignment_id, :student_id, :created_at)`, evaluationRow{
		AssignmentID: ev.AssignmentID,
		StudentID:    nullInt(ev.StudentID),
		CreatedAt:    ev.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return evaluation.Evaluation{}, evaluation.ErrAlreadyEvaluated
		}
		return evaluation.Evaluation{}, errors.Wrap(err, "inserting evaluation")
	}

	for i, rt := range ev.Ratings {
		_, err = tx.NamedExecContext(ctx, `INSERT INTO ratings (evaluation_id, position, criterion, value)
			VALUES (:evaluation_id, :position, :criterion, :value)`, ratingRow{
			EvaluationID: ev.ID,
			Position:     i,
			Criterion:    rt.Criterion,
			Value:        rt.Value,
		})
		if err != nil {
			return evaluation.Evaluation{}, errors.Wrap(err, "inserting rating")
		}
	}
	for i, cmt := range ev.Comments {
		_, err = tx.NamedExecContext(ctx, `INSERT INTO comments (evaluation_id, position, target, text, sentiment)
			VALUES (:evaluation_id, :position, :target, :text, :sentiment)`, commentRow{
			EvaluationID: ev.ID,
			Position:     i,
			Target:       string(cmt.Target),
			Text:         cmt.Text,
			Sentiment:    string(cmt.Sentiment),
		})
		if err != nil {
			return evaluation.Evaluation{}, errors.Wrap(err, "inserting comment")
		}
	}
	return ev, nil
}

func (repo *evaluationRepository) HasEvaluation(ctx context.Context, assignmentID, studentID int) (bool, error) {
	var n int
	q := "SELECT COUNT(*) FROM evaluations WHERE assignment_id = ? AND student_id = ?"
	if err := repo.db.GetContext(ctx, &n, repo.db.Rebind(q), assignmentID, studentID); err != nil {
		return false, errors.Wrap(err, "checking evaluation")
	}
	return n > 0, nil
}

// QueryRecords loads the matching evaluations ordered by ID (submission order), then their ratings and comments.
func (repo *evaluationRepository) QueryRecords(ctx context.Context, filter evaluation.RecordFilter) ([]evaluation.Record, error) {
	var qb queryBuilder
	if filter.AssignmentID != 0 {
		qb.add("e.assignment_id = ?", filter.AssignmentID)
	}
	if filter.TeacherID != 0 {
		qb.add("a.teacher_id = ?", filter.TeacherID)
	}
	if filter.CourseID != 0 {
		qb.add("a.course_id = ?", filter.CourseID)
	}
	if !filter.From.IsZero() {
		qb.add("e.created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		qb.add("e.created_at < ?", filter.To.UTC())
	}

	q := "SELECT e.id, e.assignment_id, e.student_id, e.created_at FROM evaluations e " +
		"JOIN assignments a ON a.id = e.assignment_id" + qb.String() + " ORDER BY e.id"
	var evs []evaluationRow
	if err := repo.db.SelectContext(ctx, &evs, repo.db.Rebind(q), qb.args...); err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}

	records := make([]evaluation.Record, 0, len(evs))
	if len(evs) == 0 {
		return records, nil
	}
	ids := make([]int, 0, len(evs))
	index := make(map[int]int, len(evs)) // evaluation ID -> records index
	for i, ev := range evs {
		ids = append(ids, ev.ID)
		index[ev.ID] = i
		records = append(records, evaluation.Record{
			ID:       ev.ID,
			Date:     evaluation.Date{Time: ev.CreatedAt.UTC()},
			Ratings:  []evaluation.Rating{},
			Comments: []evaluation.Comment{},
		})
	}

	var ratings []ratingRow
	if err := repo.selectIn(ctx, &ratings,
		"SELECT evaluation_id, position, criterion, value FROM ratings WHERE evaluation_id IN (?) ORDER BY evaluation_id, position",
		ids); err != nil {
		return nil, errors.Wrap(err, "querying ratings")
	}
	for _, rt := range ratings {
		rec := &records[index[rt.EvaluationID]]
		rec.Ratings = append(rec.Ratings, evaluation.Rating{Criterion: rt.Criterion, Value: rt.Value})
	}

	var comments []commentRow
	if err := repo.selectIn(ctx, &comments,
		"SELECT evaluation_id, position, target, text, sentiment FROM comments WHERE evaluation_id IN (?) ORDER BY evaluation_id, position",
		ids); err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	for _, cmt := range comments {
		rec := &records[index[cmt.EvaluationID]]
		rec.Comments = append(rec.Comments, evaluation.Comment{
			Target:    evaluation.Target(cmt.Target),
			Text:      cmt.Text,
			Sentiment: evaluation.Sentiment(cmt.Sentiment),
		})
	}
	return records, nil
}

func (repo *evaluationRepository) selectIn(ctx context.Context, dest interface{}, q string, ids []int) error {
	query, args, err := sqlx.In(q, ids)
	if err != nil {
		return err
	}
	return repo.db.SelectContext(ctx, dest, repo.db.Rebind(query), args...)
}
