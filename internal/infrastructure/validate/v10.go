package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	pt_BR_translations "github.com/go-playground/validator/v10/translations/pt_BR"
)

// supported message locales
const (
	LocaleEN   = "en"
	LocalePTBR = "pt_BR"
)

// PlaygroundV10 Validator implementation using go-playground
type PlaygroundV10 struct {
	core  *validator.Validate
	trans ut.Translator
}

var _ Validator = &PlaygroundV10{}

// NewValidator create a new Validator whose messages are written in locale,
// unknown locales fall back to en
func NewValidator(locale string) *PlaygroundV10 {
	uni := ut.New(en.New(), en.New(), pt_BR.New())
	validate := validator.New()

	var trans ut.Translator
	switch locale {
	case LocalePTBR:
		trans, _ = uni.GetTranslator(LocalePTBR)
		pt_BR_translations.RegisterDefaultTranslations(validate, trans)
	default:
		trans, _ = uni.GetTranslator(LocaleEN)
		en_translations.RegisterDefaultTranslations(validate, trans)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &PlaygroundV10{
		core:  validate,
		trans: trans,
	}
}

// Struct validate struct
func (v PlaygroundV10) Struct(s interface{}) []*FieldError {
	err := v.core.Struct(s)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*FieldError{NewFieldError("", err.Error())}
	}
	result := make([]*FieldError, 0, len(ve))
	for _, item := range ve {
		result = append(result, NewFieldError(fieldPath(item.Namespace()), item.Translate(v.trans)))
	}
	return result
}

// Var validate a single value against tag, varName names it in the messages
func (v PlaygroundV10) Var(varName string, value interface{}, tag string) []*FieldError {
	err := v.core.Var(value, tag)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*FieldError{NewFieldError(varName, err.Error())}
	}
	result := make([]*FieldError, 0, len(ve))
	for _, item := range ve {
		// a bare value has no field name, the translation starts right after it
		result = append(result, NewFieldError(varName, varName+" "+strings.TrimSpace(item.Translate(v.trans))))
	}
	return result
}

// fieldPath strip the root struct name, "ModuleInput.aulas[0].titulo" becomes "aulas[0].titulo"
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
