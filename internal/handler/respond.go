package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/loopfeed/loopfeed/internal/ctxkeys"
	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/service"
	"github.com/loopfeed/loopfeed/internal/validation"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Step  *int   `json:"step,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return validation.FieldError("", "Request body is empty.")
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	if err != nil {
		return validation.FieldError("", "Request body is not valid JSON.")
	}
	return validateStruct(dst)
}

func validateStruct(dst any) error {
	err := validate.Struct(dst)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return validation.FieldError(verrs[0].Field(), fieldMessage(verrs[0]))
	}
	return err
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long (max %s)", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s is too short (min %s)", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "email":
		return "email is invalid"
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}

// writeError maps an error to a status code and a JSON body. Unexpected
// errors are logged and reported without their details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp := errorResponse{Error: verr.Message, Field: verr.Field}
		if verr.Step >= 0 {
			step := verr.Step
			resp.Step = &step
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	status, field := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"user_id", ctxkeys.UserID(r.Context()),
			"request_id", ctxkeys.RequestID(r.Context()),
		)
		writeJSON(w, status, errorResponse{Error: "Something went wrong. Please try again."})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Field: field})
}

func errorStatus(err error) (status int, field string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, ""
	case errors.Is(err, service.ErrRefererNotAllowed),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, ""
	case errors.Is(err, repository.ErrLoopNotFound),
		errors.Is(err, repository.ErrFolderNotFound),
		errors.Is(err, repository.ErrWhisperNotFound),
		errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, draft.ErrSessionNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return http.StatusConflict, "email"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "username"
	case errors.Is(err, draft.ErrPublishInProgress),
		errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, ""
	case errors.Is(err, draft.ErrTooManyTags),
		errors.Is(err, draft.ErrEmptyTag):
		return http.StatusUnprocessableEntity, "tag"
	case errors.Is(err, draft.ErrInvalidVisibility):
		return http.StatusUnprocessableEntity, "visibility"
	case errors.Is(err, draft.ErrIndexOutOfRange):
		return http.StatusUnprocessableEntity, "position"
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrNotHTML):
		return http.StatusBadRequest, "url"
	case errors.Is(err, service.ErrFetchFailed):
		return http.StatusBadGateway, "url"
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, ""
	}
	return http.StatusInternalServerError, ""
}
