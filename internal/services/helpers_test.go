package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database/databasetest"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const testSecret = "test-secret"

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestMain(m *testing.M) {
	utils.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

func strPtr(v string) *string {
	return &v
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string) models.Product {
	t.Helper()
	product := models.Product{
		Name:  name,
		Slug:  slugBase(name),
		Price: decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func seedCustomer(t *testing.T, db *gorm.DB, email, phone string) models.Customer {
	t.Helper()
	customer := models.Customer{
		Name:         "Grace Hopper",
		Email:        email,
		Phone:        phone,
		PasswordHash: "x",
		Address:      strPtr("1 Navy Way"),
		Area:         strPtr("Harbor"),
		City:         strPtr("Arlington"),
	}
	require.NoError(t, db.Create(&customer).Error)
	return customer
}

func newOrderService(t *testing.T) (*OrderService, *gorm.DB) {
	t.Helper()
	db := databasetest.New(t)
	storage := NewLocalImageStorage(t.TempDir(), "/storage")
	return NewOrderService(db, NewOrderNumberGenerator(), storage), db
}

// fileHeader builds a parsed multipart upload holding content.
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["file"][0]
}

func pngUpload(t *testing.T, filename string) *multipart.FileHeader {
	t.Helper()
	return fileHeader(t, filename, pngMagic)
}

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, kind, svcErr.Kind, svcErr.Error())
	return svcErr
}
