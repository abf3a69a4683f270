package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"serveq/pkg/logger"

	"github.com/go-playground/validator/v10"
)

var codeRegex = regexp.MustCompile(`^\d+$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type loginRequest struct {
	Identity    string `validate:"required,email"`
	DisplayName string `validate:"max=120"`
}

type verifyRequest struct {
	Identity string `validate:"required,email"`
	Code     string `validate:"required"`
}

type OtpValidator struct {
	validate   *validator.Validate
	codeLength int
	logger     *logger.Logger
}

func NewOtpValidator(codeLength int, log *logger.Logger) *OtpValidator {
	log.Info("Passcode validator initialized successfully",
		"code_length", codeLength,
	)

	return &OtpValidator{
		validate:   validator.New(),
		codeLength: codeLength,
		logger:     log,
	}
}

func (v *OtpValidator) ValidateLogin(identity, displayName string) error {
	req := loginRequest{Identity: identity, DisplayName: displayName}
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *OtpValidator) ValidateVerify(identity, code string) error {
	req := verifyRequest{Identity: identity, Code: code}
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if len(code) != v.codeLength || !codeRegex.MatchString(code) {
		return ValidationErrors{
			ValidationError{
				Field:   "Code",
				Message: fmt.Sprintf("code must be exactly %d digits", v.codeLength),
			},
		}
	}

	return nil
}

func (v *OtpValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
