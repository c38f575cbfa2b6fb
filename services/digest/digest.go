// Package digestsvc emails every teacher a periodic summary of the evaluations of their courses.
package digestsvc

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
)

const (
	maxConcurrentReports = 4
	runTimeout           = 10 * time.Minute
)

type (
	Catalog interface {
		QueryAssignments(ctx context.Context, filter school.AssignmentFilter, ordering []core.DBOrdering) ([]school.Assignment, error)
	}

	Reporter interface {
		Report(ctx context.Context, teacherID, courseID int, sel evaluation.Selection) (evaluation.Report, error)
	}

	Digest struct {
		catalog  Catalog
		reporter Reporter
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

func New(catalog Catalog, reporter Reporter, mailSvc core.EmailService, logger core.Logger) *Digest {
	return &Digest{catalog: catalog, reporter: reporter, mailSvc: mailSvc, logger: logger}
}

type pair struct {
	teacherID int
	courseID  int
}

// Run builds the report of every teacher+course pair and sends one email per teacher.
// Pairs without evaluations, pairs whose report fails and teachers without email are skipped.
// It returns the number of emails sent.
func (d *Digest) Run(ctx context.Context) (int, error) {
	asgs, err := d.catalog.QueryAssignments(ctx, school.AssignmentFilter{}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying assignments")
	}

	// the same pair may be assigned for several periods
	seen := make(map[pair]bool, len(asgs))
	pairs := make([]pair, 0, len(asgs))
	for _, asg := range asgs {
		p := pair{asg.TeacherID, asg.CourseID}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	var (
		mu      sync.Mutex
		reports = make(map[int][]evaluation.Report) // by teacher ID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReports)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			rpt, err := d.reporter.Report(gctx, p.teacherID, p.courseID, evaluation.Selection{})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				d.logger.Error(
					fmt.Sprintf("building report of teacher %d for course %d: %v", p.teacherID, p.courseID, err),
					err,
				)
				return nil
			}
			if rpt.Dashboard.TotalRecords == 0 || rpt.Teacher.Email == "" {
				return nil
			}
			mu.Lock()
			reports[p.teacherID] = append(reports[p.teacherID], rpt)
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return 0, err
	}

	messages := make([]*core.EmailMessage, 0, len(reports))
	for _, rpts := range reports {
		sort.Slice(rpts, func(i, j int) bool { return rpts[i].Course.Code < rpts[j].Course.Code })
		messages = append(messages, message(rpts))
	}
	d.mailSvc.SendMessages(messages...)
	return len(messages), nil
}

func message(rpts []evaluation.Report) *core.EmailMessage {
	tch := rpts[0].Teacher
	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "Hi %s,\r\n\r\nHere is the summary of your evaluations.\r\n", tch.Name)

	for _, rpt := range rpts {
		dash := rpt.Dashboard
		_, _ = fmt.Fprintf(body, "\r\n%s - %s (%d evaluations)\r\n", strings.ToUpper(rpt.Course.Code), rpt.Course.Name, dash.TotalRecords)
		for i, label := range dash.CriterionLabels {
			_, _ = fmt.Fprintf(body, "  %-22s %.1f\r\n", label, dash.CriterionAverages[i])
		}
		for _, row := range []struct {
			name   string
			counts evaluation.SentimentCounts
		}{
			{"Teacher comments", dash.SentimentCounts.Teacher},
			{"Course comments", dash.SentimentCounts.Course},
		} {
			_, _ = fmt.Fprintf(body, "  %s: %d positive, %d neutral, %d negative\r\n",
				row.name, row.counts.Positive, row.counts.Neutral, row.counts.Negative)
		}
	}

	return &core.EmailMessage{
		To:          []mail.Address{{Name: tch.Name, Address: tch.Email}},
		Subject:     "Your evaluations summary",
		TextContent: body.String(),
	}
}

// Schedule registers Run on the cron `spec` (5 fields, eg. "0 8 * * 1"). The caller starts and stops the returned cron.
func (d *Digest) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		n, err := d.Run(ctx)
		if err != nil {
			d.logger.Error(fmt.Sprintf("running evaluations digest: %v", err), err)
			return
		}
		d.logger.Info("evaluations digest sent", map[string]interface{}{"emails": n})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scheduling digest %q", spec)
	}
	return c, nil
}
