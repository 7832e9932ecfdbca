package http

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_Status(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("quant q1: %w", domain.ErrInsufficientStock), fiber.StatusConflict},
		{domain.ErrConflict, fiber.StatusConflict},
		{domain.ErrInvalidInput, fiber.StatusBadRequest},
		{domain.ErrInvalidFilterCombination, fiber.StatusBadRequest},
		{fmt.Errorf("redondeo: %w", domain.ErrRoundingViolation), fiber.StatusUnprocessableEntity},
		{domain.ErrInvalidState, fiber.StatusUnprocessableEntity},
		{domain.ErrNotFound, fiber.StatusNotFound},
		{domain.ErrForbidden, fiber.StatusForbidden},
		{domain.ErrUnauthorized, fiber.StatusUnauthorized},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		app := fiber.New()
		err := tc.err
		app.Get("/", func(c *fiber.Ctx) error { return writeError(c, err) })
		resp, e := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		require.NoError(t, e)
		resp.Body.Close()
		assert.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
	}
}
