package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/services"
)

func render(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error { return err })

	resp, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, testErr)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestErrorHandlerMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ValidationError("email", "the email field is required"), fiber.StatusUnprocessableEntity},
		{services.ErrInvalidCredentials, fiber.StatusUnauthorized},
		{services.UnauthenticatedError("invalid token"), fiber.StatusUnauthorized},
		{services.ForbiddenError("this order does not belong to you"), fiber.StatusForbidden},
		{services.NotFoundError("order not found"), fiber.StatusNotFound},
		{fiber.NewError(fiber.StatusBadRequest, "invalid request body"), fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		status, body := render(t, tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, false, body["success"])
	}
}

func TestErrorHandlerIncludesFieldErrors(t *testing.T) {
	err := services.FieldErrors{
		"email": {"the email field is required"},
		"phone": {"guest checkout requires name, email, phone"},
	}.Err("")

	status, body := render(t, err)

	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "the given data was invalid", body["message"])
	fields, ok := body["errors"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"the email field is required"}, fields["email"])
}

func TestErrorHandlerHidesServerDetails(t *testing.T) {
	status, body := render(t, services.ServerError("failed to load order", errors.New("pq: connection refused")))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["message"])

	status, body = render(t, errors.New("boom"))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, body, "errors")
}

func TestParseBodyReportsDecodeFailuresAsValidation(t *testing.T) {
	type payload struct {
		Items    []services.CartLine `json:"items"`
		Quantity int                 `json:"quantity"`
	}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/", func(c *fiber.Ctx) error {
		var p payload
		if err := parseBody(c, &p); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	cases := []struct {
		body    string
		field   string
		message string
	}{
		{`{"quantity":"two"}`, "quantity", "the quantity field must be an integer"},
		{`{"items":"nope"}`, "items", "the items field must be an array"},
		{`{"quantity":`, "body", "the request body is malformed"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(fiber.MethodPost, "/", strings.NewReader(tc.body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode, tc.body)
		fields, ok := body["errors"].(map[string]interface{})
		require.True(t, ok, tc.body)
		assert.Equal(t, []interface{}{tc.message}, fields[tc.field], tc.body)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/", strings.NewReader(`{"quantity":2}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
