package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation wraps every rejection of creation input.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence wraps store read and write failures.
	ErrPersistence = errors.New("persistence failed")

	// ErrUnauthenticated is returned when the caller carries no user id.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError is a user-facing rejection of creation input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// MsgPrizeSum is shown when the four prize shares do not add up.
var MsgPrizeSum = fmt.Sprintf("prize distribution percentages must sum to %g%% (with %g%% platform charge)",
	100-platformCharge, platformCharge)

// fromValidator turns the first failed field of a validator error into a ValidationError.
func fromValidator(err error) *ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	fe := ve[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "gte":
		msg = fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		msg = fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of %s", field, strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &ValidationError{Field: field, Message: msg}
}
