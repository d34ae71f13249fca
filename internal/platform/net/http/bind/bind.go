// Package bind decodes JSON request bodies and validates structs with
// go-playground/validator using English messages keyed by json names
package bind

import (
	"bytes"
	"encoding/json"
	stderrs "errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	perr "newsroom/internal/platform/errors"
	"newsroom/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ValidatorSvc is the process validator and its translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Get returns the validator, building it on first use
func Get() *ValidatorSvc {
	vOnce.Do(func() {
		loc := en.New()
		trans, _ := ut.New(loc, loc).GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)
		short(v, trans, "min", "{0} must be at least {1}")
		short(v, trans, "max", "{0} must be at most {1}")
		short(v, trans, "oneof", "{0} must be one of [{1}]")

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

func short(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Struct validates v and returns a validation *perr.Error naming the first
// offending field
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if stderrs.As(err, &inv) {
		return perr.Wrap(inv, perr.ErrorCodeUnknown, "validator misuse")
	}
	field, msg := FieldAndMessage(err)
	return perr.WithField(perr.Validationf("%s", msg), field)
}

// FieldAndMessage returns the first failing field and its translated message
func FieldAndMessage(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if stderrs.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field(), verrs[0].Translate(Get().Translator)
	}
	if err == nil {
		return "", ""
	}
	return "", err.Error()
}

// MaxBodyBytes caps request bodies read by ParseJSON
var MaxBodyBytes int64 = 2 << 20

// ParseJSON decodes one JSON object into T, rejecting unknown fields and
// trailing data, then validates it
func ParseJSON[T any](r *http.Request) (T, error) {
	var zero T
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.Get().Warn().Err(err).Msg("close request body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return zero, perr.Wrap(err, perr.ErrorCodeJSON, "read body")
	}
	if int64(len(body)) > MaxBodyBytes {
		return zero, perr.JSONErrf("body exceeds %d bytes", MaxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return zero, perr.JSONErrf("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	var dst T
	if err := dec.Decode(&dst); err != nil {
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := Struct(dst); err != nil {
		return zero, err
	}
	return dst, nil
}
