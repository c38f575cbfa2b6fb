package evaluation

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/evaluo/core"
)

var (
	criterionTag  = "criterion"
	criterionText = "unknown criterion"

	scaleTag  = "scale"
	scaleText = "must be one of pesimo, malo, regular, bueno, excelente"

	filterTag  = "sentiment_filter"
	filterText = "must be one of all, positivo, neutral, negativo"

	uniqueCriteriaTag  = "unique_criteria"
	uniqueCriteriaText = "each criterion can only be rated once"

	onePerTargetTag  = "one_per_target"
	onePerTargetText = "at most one comment per target is allowed"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(criterionTag, criterionValidation)
	core.RegisterCustomTranslation(validate, translator, criterionTag, criterionText)

	_ = validate.RegisterValidation(scaleTag, scaleValidation)
	core.RegisterCustomTranslation(validate, translator, scaleTag, scaleText)

	_ = validate.RegisterValidation(filterTag, filterValidation)
	core.RegisterCustomTranslation(validate, translator, filterTag, filterText)

	validate.RegisterStructValidation(recordStructValidation, Record{})
	core.RegisterCustomTranslation(validate, translator, uniqueCriteriaTag, uniqueCriteriaText)
	core.RegisterCustomTranslation(validate, translator, onePerTargetTag, onePerTargetText)
}

func criterionValidation(fl validator.FieldLevel) bool {
	return IsCriterion(fl.Field().String())
}

func scaleValidation(fl validator.FieldLevel) bool {
	_, ok := ParseScale(fl.Field().String())
	return ok
}

func filterValidation(fl validator.FieldLevel) bool {
	return Filter(fl.Field().String()).IsValid()
}

// recordStructValidation checks what field tags cannot express on a Record:
// a submission date, unique criteria and at most one comment per target.
func recordStructValidation(sl validator.StructLevel) {
	rec, ok := sl.Current().Interface().(Record)
	if !ok {
		return
	}

	if rec.Date.IsZero() {
		sl.ReportError(rec.Date, "fecha", "Date", "required", "")
	}

	seen := make(map[string]bool, len(rec.Ratings))
	for _, rt := range rec.Ratings {
		if seen[rt.Criterion] {
			sl.ReportError(rec.Ratings, "calificaciones", "Ratings", uniqueCriteriaTag, "")
			break
		}
		seen[rt.Criterion] = true
	}

	targets := make(map[Target]bool, len(Targets))
	for _, cmt := range rec.Comments {
		if targets[cmt.Target] {
			sl.ReportError(rec.Comments, "comentarios", "Comments", onePerTargetTag, "")
			break
		}
		targets[cmt.Target] = true
	}
}
