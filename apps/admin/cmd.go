package main

import (
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	usrRepo   user.Repository
	schoolSvc *school.Service
	evalSvc   *evaluation.Service
	validate  *validator.Validate
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run database migrations (up, down, status, version, redo, reset, up-to, down-to)")
	fmt.Fprintln(cli.out, "  seed -file FIXTURES.yaml - create the courses, teachers, students and assignments of a fixtures file")
	fmt.Fprintln(cli.out, "  import -assignment ID -file RECORDS.json - import evaluation records under an assignment")
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name (defaults to the username).")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedCmd.SetOutput(cli.out)
	seedFile := seedCmd.String("file", "", "Path to the YAML fixtures.")

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importCmd.SetOutput(cli.out)
	importAssignment := importCmd.Int("assignment", 0, "ID of the assignment (teacher+course+period) the records belong to.")
	importFile := importCmd.String("file", "", "Path to the JSON array of evaluation records.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(*seedFile)

	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importAssignment <= 0 || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importRecords(*importAssignment, *importFile)

	default:
		cli.printUsage()
		return errHelp
	}
}
