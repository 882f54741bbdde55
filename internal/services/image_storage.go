package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/example/storefront/internal/models"
)

// MaxImageSize is the upload limit per image file.
const MaxImageSize = 5 << 20

// ImageStorage persists uploaded product images and maps stored paths to public URLs.
type ImageStorage interface {
	Save(file *multipart.FileHeader, dir string) (string, error)
	Delete(storedPath string) error
	URL(storedPath string) string
}

// LocalImageStorage keeps files under a root directory served as static files.
type LocalImageStorage struct {
	root    string
	baseURL string
}

// NewLocalImageStorage constructs LocalImageStorage.
func NewLocalImageStorage(root, baseURL string) *LocalImageStorage {
	return &LocalImageStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Save copies the upload to dir under a random name and returns its relative path.
func (s *LocalImageStorage) Save(file *multipart.FileHeader, dir string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	stored := path.Join(dir, name)

	dst, err := os.Create(filepath.Join(s.root, filepath.FromSlash(stored)))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	return stored, nil
}

// Delete removes a stored file. Missing files are ignored.
func (s *LocalImageStorage) Delete(storedPath string) error {
	clean := path.Clean("/" + storedPath)
	if clean == "/" {
		return fmt.Errorf("refusing to delete %q", storedPath)
	}

	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the public URL of a stored path.
func (s *LocalImageStorage) URL(storedPath string) string {
	return s.baseURL + "/" + strings.TrimLeft(storedPath, "/")
}

// checkImage validates size and sniffed content type of an upload.
func checkImage(file *multipart.FileHeader) []string {
	if file.Size > MaxImageSize {
		return []string{fmt.Sprintf("the image may not be greater than %d kilobytes", MaxImageSize>>10)}
	}

	src, err := file.Open()
	if err != nil {
		return []string{"the image could not be read"}
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil || !strings.HasPrefix(mtype.String(), "image/") {
		return []string{"the file must be an image"}
	}
	return nil
}

// applyImageURLs fills the URL fields of p from its stored paths.
func applyImageURLs(storage ImageStorage, p *models.Product) {
	if storage == nil || p == nil {
		return
	}
	if p.FeaturedImage != nil {
		url := storage.URL(*p.FeaturedImage)
		p.FeaturedImageURL = &url
	}
	p.ImagesURLs = make([]string, 0, len(p.Images))
	for i := range p.Images {
		p.Images[i].URL = storage.URL(p.Images[i].Path)
		p.ImagesURLs = append(p.ImagesURLs, p.Images[i].URL)
	}
}
