package inmemdb

import (
	"context"

	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
)

type evaluationRepository struct {
	db         *table[evaluation.Evaluation]
	assignment *table[school.Assignment]
}

var _ evaluation.Repository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *DB) evaluation.Repository {
	return &evaluationRepository{db: db.evaluation, assignment: db.assignment}
}

func (repo *evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	evs, err := repo.CreateEvaluations(ctx, []evaluation.Evaluation{ev})
	if err != nil {
		return evaluation.Evaluation{}, err
	}
	return evs[0], nil
}

// CreateEvaluations checks and inserts under the same lock, like the unique (assignment, student) index would.
func (repo *evaluationRepository) CreateEvaluations(_ context.Context, evs []evaluation.Evaluation) ([]evaluation.Evaluation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	type authorship struct{ assignmentID, studentID int }
	authors := make(map[authorship]bool, len(repo.db.rows)+len(evs))
	for _, ev := range repo.db.rows {
		if ev.StudentID != 0 {
			authors[authorship{ev.AssignmentID, ev.StudentID}] = true
		}
	}
	for _, ev := range evs {
		if ev.StudentID == 0 {
			continue
		}
		key := authorship{ev.AssignmentID, ev.StudentID}
		if authors[key] {
			return nil, evaluation.ErrAlreadyEvaluated
		}
		authors[key] = true
	}

	out := make([]evaluation.Evaluation, 0, len(evs))
	for _, ev := range evs {
		ev.ID = repo.db.nextID()
		ev.Ratings = append([]evaluation.Rating(nil), ev.Ratings...)
		ev.Comments = append([]evaluation.Comment(nil), ev.Comments...)
		repo.db.rows[ev.ID] = ev
		out = append(out, ev)
	}
	return out, nil
}

func (repo *evaluationRepository) HasEvaluation(_ context.Context, assignmentID, studentID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ev := range repo.db.rows {
		if ev.AssignmentID == assignmentID && ev.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *evaluationRepository) QueryRecords(_ context.Context, filter evaluation.RecordFilter) ([]evaluation.Record, error) {
	repo.assignment.RLock()
	asgs := make(map[int]school.Assignment, len(repo.assignment.rows))
	for id, asg := range repo.assignment.rows {
		asgs[id] = asg
	}
	repo.assignment.RUnlock()

	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]evaluation.Record, 0)
	for _, ev := range repo.db.all() { // ID order is submission order
		asg := asgs[ev.AssignmentID]
		if filter.AssignmentID != 0 && ev.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.TeacherID != 0 && asg.TeacherID != filter.TeacherID {
			continue
		}
		if filter.CourseID != 0 && asg.CourseID != filter.CourseID {
			continue
		}
		if !filter.From.IsZero() && ev.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !ev.CreatedAt.Before(filter.To) {
			continue
		}
		records = append(records, ev.Record())
	}
	return records, nil
}
