package evaluation

import (
	"encoding/json"
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core"
)

var (
	errExpectedArray  = errors.New("expected an array of evaluations")
	errInvalidRecords = errors.New("invalid evaluations")
)

// ParseRecords decodes a JSON array of evaluation records and validates every record.
// Shape mismatches are reported as a *core.ValidationError with one FieldError per problem,
// keyed by the record index (eg. "[2].calificaciones[0].valor").
func ParseRecords(data []byte, validate *validator.Validate, translator ut.Translator) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, core.NewValidationError(errors.Wrap(err, "decoding evaluations"))
	}
	if records == nil {
		return nil, core.NewValidationError(errExpectedArray)
	}

	var flds []core.FieldError
	for i := range records {
		err := validate.Struct(records[i])
		if err == nil {
			continue
		}
		vErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, errors.Wrap(err, "validating evaluation")
		}
		for _, vErr := range vErrs {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("[%d]%s", i, strings.TrimPrefix(vErr.Namespace(), "Record")),
				Error: vErr.Translate(translator),
			})
		}
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(errInvalidRecords, flds...)
	}
	return records, nil
}
