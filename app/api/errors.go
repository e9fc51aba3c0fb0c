package api

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"docquery/types"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr Error
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Code).JSON(apiErr)
	}

	var valErr types.ValidationError
	if errors.As(err, &valErr) {
		return c.Status(valErr.Status).JSON(valErr)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		apiErr = NewError(fiberErr.Code, fiberErr.Message)
	} else {
		apiErr = NewError(fiber.StatusInternalServerError, err.Error())
	}

	log.Printf("Request failed with code %d and message: %s", apiErr.Code, apiErr.Message)
	return c.Status(apiErr.Code).JSON(apiErr)
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, message string) Error {
	return Error{
		Code:    code,
		Message: message,
	}
}

func ErrBadRequest() Error {
	return NewError(fiber.StatusBadRequest, "invalid request body")
}
