package analytics

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soko/core"
)

var (
	groupingTag  = "grouping"
	groupingText = "{0} must be one of day, week or month"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(groupingTag, core.OneOfValidation(Groupings))
	core.RegisterCustomTranslation(validate, translator, groupingTag, groupingText)
}
