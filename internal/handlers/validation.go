package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/ideafeed/backend/pkg/apperror"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return apperror.New(http.StatusBadRequest, apperror.ErrValidationFailed.Error(), errors.Join(apperror.ErrValidationFailed, err))
	}
	return nil
}

// storeError passes the failure taxonomy through unchanged and reports
// anything else as the store being unavailable.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, apperror.ErrNotFound),
		errors.Is(err, apperror.ErrAlreadyLiked),
		errors.Is(err, apperror.ErrNotLiked),
		errors.Is(err, apperror.ErrUnauthorized),
		errors.Is(err, apperror.ErrValidationFailed):
		return err
	}
	return apperror.Unavailable(op, err)
}

func requireCaller(caller string) error {
	if caller == "" {
		return apperror.ErrUnauthorized
	}
	return nil
}
