package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/school"
)

type (
	fixtures struct {
		Courses     []courseFixture     `yaml:"courses"`
		Teachers    []teacherFixture    `yaml:"teachers"`
		Students    []studentFixture    `yaml:"students"`
		Assignments []assignmentFixture `yaml:"assignments"`
	}

	courseFixture struct {
		Code    string `yaml:"code"`
		Name    string `yaml:"name"`
		Credits int    `yaml:"credits"`
	}

	teacherFixture struct {
		Name       string `yaml:"name"`
		Email      string `yaml:"email"`
		Department string `yaml:"department"`
	}

	studentFixture struct {
		Code   string `yaml:"code"`
		Name   string `yaml:"name"`
		Email  string `yaml:"email"`
		Career string `yaml:"career"`
	}

	// assignmentFixture references its teacher by email and its course by code.
	assignmentFixture struct {
		Teacher string `yaml:"teacher"`
		Course  string `yaml:"course"`
		Period  string `yaml:"period"`
	}
)

func loadFixtures(path string) (fixtures, error) {
	var fx fixtures
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, errors.Wrap(err, "reading fixtures")
	}
	if err = yaml.Unmarshal(data, &fx); err != nil {
		return fx, errors.Wrap(err, "decoding fixtures")
	}
	return fx, nil
}

// seed creates the fixtures in order: courses, teachers, students and then assignments.
// It stops at the first invalid or duplicate entry.
func (cli *commandLine) seed(path string) error {
	fx, err := loadFixtures(path)
	if err != nil {
		return err
	}
	ctx := context.Background()

	courses := make(map[string]int, len(fx.Courses))
	for i, f := range fx.Courses {
		nc := school.NewCourse{Code: f.Code, Name: f.Name, Credits: f.Credits}
		if err = nc.Validate(ctx, cli.validate, cli.schoolSvc); err != nil {
			return fixtureError(err, "courses", i)
		}
		crs, err := cli.schoolSvc.CreateCourse(ctx, nc)
		if err != nil {
			return errors.Wrapf(err, "creating course %q", nc.Code)
		}
		courses[crs.Code] = crs.ID
	}

	teachers := make(map[string]int, len(fx.Teachers))
	for i, f := range fx.Teachers {
		nt := school.NewTeacher{Name: f.Name, Email: f.Email, Department: f.Department}
		if err = nt.Validate(ctx, cli.validate, cli.schoolSvc); err != nil {
			return fixtureError(err, "teachers", i)
		}
		tch, err := cli.schoolSvc.CreateTeacher(ctx, nt)
		if err != nil {
			return errors.Wrapf(err, "creating teacher %q", nt.Email)
		}
		teachers[tch.Email] = tch.ID
	}

	for i, f := range fx.Students {
		ns := school.NewStudent{Code: f.Code, Name: f.Name, Email: f.Email, Career: f.Career}
		if err = ns.Validate(ctx, cli.validate, cli.schoolSvc); err != nil {
			return fixtureError(err, "students", i)
		}
		if _, err = cli.schoolSvc.CreateStudent(ctx, ns); err != nil {
			return errors.Wrapf(err, "creating student %q", ns.Code)
		}
	}

	for i, f := range fx.Assignments {
		na := school.NewAssignment{
			TeacherID: teachers[core.CleanString(f.Teacher, true /* lower */)],
			CourseID:  courses[core.CleanString(f.Course, true /* lower */)],
			Period:    f.Period,
		}
		if na.TeacherID == 0 {
			return errors.Errorf("assignments[%d]: unknown teacher %q", i, f.Teacher)
		}
		if na.CourseID == 0 {
			return errors.Errorf("assignments[%d]: unknown course %q", i, f.Course)
		}
		if err = na.Validate(ctx, cli.validate, cli.schoolSvc); err != nil {
			return fixtureError(err, "assignments", i)
		}
		if _, err = cli.schoolSvc.CreateAssignment(ctx, na); err != nil {
			return errors.Wrapf(err, "creating assignment %d", i)
		}
	}

	fmt.Fprintf(
		cli.out, "seeded %d courses, %d teachers, %d students and %d assignments\n",
		len(fx.Courses), len(fx.Teachers), len(fx.Students), len(fx.Assignments),
	)
	return nil
}

func fixtureError(err error, section string, idx int) error {
	return errors.Wrapf(err, "%s[%d]", section, idx)
}
