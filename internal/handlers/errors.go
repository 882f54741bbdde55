package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:         fiber.StatusUnprocessableEntity,
	services.KindInvalidCredentials: fiber.StatusUnauthorized,
	services.KindUnauthenticated:    fiber.StatusUnauthorized,
	services.KindForbidden:          fiber.StatusForbidden,
	services.KindNotFound:           fiber.StatusNotFound,
	services.KindServer:             fiber.StatusInternalServerError,
}

// ErrorHandler renders every error returned by a handler or middleware.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal server error"
	var fields services.FieldErrors

	var svcErr *services.Error
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &svcErr):
		if code, ok := kindStatus[svcErr.Kind]; ok {
			status = code
		}
		if status < fiber.StatusInternalServerError {
			message = svcErr.Message
		}
		fields = svcErr.Fields
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
		message = fiberErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}

	body := fiber.Map{"success": false, "message": message}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	return c.Status(status).JSON(body)
}

// parseBody decodes the request body into out. An empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError turns a decode failure into a validation error, keyed by the
// offending field when the decoder names one.
func bodyError(err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code != fiber.StatusUnprocessableEntity {
		return fiberErr
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		label := strings.ReplaceAll(typeErr.Field, "_", " ")
		return services.ValidationError(typeErr.Field,
			fmt.Sprintf("the %s field must be %s", label, jsonTypeName(typeErr.Type)))
	}
	return services.ValidationError("body", "the request body is malformed")
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	if t == reflect.TypeOf(json.Number("")) {
		return "a number"
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "true or false"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Ptr:
		return jsonTypeName(t.Elem())
	}
	return "a valid value"
}
