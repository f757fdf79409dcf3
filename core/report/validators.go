package report

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
)

var (
	reportTypeTag  = "reporttype"
	reportTypeText = "{0} must be one of sales_performance, customer_engagement, task_completion, conversion_ratios or user_activity"

	frequencyTag  = "frequency"
	frequencyText = "{0} must be one of daily, weekly, monthly or quarterly"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(reportTypeTag, core.OneOfValidation(analytics.ReportKinds))
	core.RegisterCustomTranslation(validate, translator, reportTypeTag, reportTypeText)

	_ = validate.RegisterValidation(frequencyTag, core.OneOfValidation(Frequencies))
	core.RegisterCustomTranslation(validate, translator, frequencyTag, frequencyText)
}
