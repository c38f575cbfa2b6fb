package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core"
)

// importRecords stores the evaluation records of a JSON file under an assignment.
// Validation problems are printed one per line.
func (cli *commandLine) importRecords(assignmentID int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading records")
	}

	n, err := cli.evalSvc.Import(context.Background(), assignmentID, data)
	if err != nil {
		if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
			for _, fld := range vErr.Fields {
				fmt.Fprintf(cli.out, "  %s: %s\n", fld.Field, fld.Error)
			}
		}
		return err
	}
	fmt.Fprintf(cli.out, "imported %d evaluations\n", n)
	return nil
}
