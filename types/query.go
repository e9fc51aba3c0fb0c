package types

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type QueryParams struct {
	Query     string  `json:"query" validate:"required"`
	TopK      int     `json:"top_k" validate:"omitempty,gt=0"`
	Threshold float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
}

type BatchQueryParams struct {
	Queries []string `json:"queries" validate:"required,min=1,dive,required"`
}

type SnapshotParams struct {
	Path string `json:"path" validate:"required"`
}

// QueryResponse is the structured answer produced for every query. A query
// never fails outright: degraded paths (no retrieval hits, LLM errors) still
// produce a well-formed response.
type QueryResponse struct {
	Answer          string    `json:"answer"`
	Confidence      float64   `json:"confidence"`
	Sources         []string  `json:"sources"`
	Reasoning       string    `json:"reasoning"`
	RelevantClauses []string  `json:"relevant_clauses"`
	Domain          string    `json:"domain"`
	Timestamp       time.Time `json:"timestamp"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *QueryParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *BatchQueryParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *SnapshotParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
