package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soko/core"
)

var (
	roleTag  = "role"
	roleText = "{0} must be one of ADMIN, MANAGER or USER"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, core.OneOfValidation(AllRoles))
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}
