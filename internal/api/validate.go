package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FieldError — одна ошибка валидации поля (имя поля в JSON-нотации).
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError — payload не прошёл проверку, запрос не отправлялся.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "invalid fields: " + strings.Join(names, ", ")
}

func (e *ValidationError) HTTPStatus() int       { return http.StatusBadRequest }
func (e *ValidationError) ErrorCode() string     { return "validation_failed" }
func (e *ValidationError) PublicMessage() string { return e.Error() }

// Validator — обёртка над go-playground/validator с JSON-именами полей
// и поддержкой decimal.Decimal.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimal сравнивается как число: required,gt=0 работают для цен.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	return &Validator{v: v}
}

// Validate возвращает *ValidationError со всеми нарушениями сразу.
func (v *Validator) Validate(in any) error {
	err := v.v.Struct(in)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, len(ves))}
	for i, fe := range ves {
		out.Fields[i] = FieldError{
			Field:   fieldPath(fe.Namespace()),
			Tag:     fe.Tag(),
			Message: msgForTag(fe.Tag(), fe.Param()),
		}
	}

	return out
}

// fieldPath отрезает имя корневой структуры: "WorkflowInput.steps[0].name" -> "steps[0].name".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func msgForTag(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fmt.Sprintf("This field must contain at least %s item(s) or characters", param)
	case "max":
		return fmt.Sprintf("This field must not exceed %s characters", param)
	case "oneof":
		return fmt.Sprintf("This field must be one of: %s", param)
	case "gt":
		return fmt.Sprintf("This field must be greater than %s", param)
	default:
		return fmt.Sprintf("Failed validation on rule: %s", tag)
	}
}
