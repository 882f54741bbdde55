package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination(t *testing.T) {
	app := fiber.New()
	var got Pagination
	app.Get("/", func(c *fiber.Ctx) error {
		got = ParsePagination(c, 12)
		return nil
	})

	cases := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Page: 1, Limit: 12, Offset: 0}},
		{"?page=3", Pagination{Page: 3, Limit: 12, Offset: 24}},
		{"?page=2&per_page=5", Pagination{Page: 2, Limit: 5, Offset: 5}},
		{"?page=-1&per_page=0", Pagination{Page: 1, Limit: 12, Offset: 0}},
		{"?per_page=1000", Pagination{Page: 1, Limit: MaxPageSize, Offset: 0}},
		{"?page=abc", Pagination{Page: 1, Limit: 12, Offset: 0}},
	}

	for _, tc := range cases {
		_, err := app.Test(httptest.NewRequest("GET", "/"+tc.query, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.query)
	}
}

func TestPaginationMeta(t *testing.T) {
	meta := NewPagination(2, 10).Meta(25)

	assert.Equal(t, 2, meta["current_page"])
	assert.Equal(t, 10, meta["items_per_page"])
	assert.Equal(t, int64(25), meta["total_items"])
	assert.Equal(t, int64(3), meta["last_page"])
	assert.Equal(t, int64(1), NewPagination(1, 10).Meta(0)["last_page"])
}
