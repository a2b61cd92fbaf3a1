package core

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

// MaxImageSize caps a single image upload.
const MaxImageSize = 5 << 20

// MediaStore keeps uploaded files and serves them from a public URL.
type MediaStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (u ImageUpload) Validate() error {
	if !strings.HasPrefix(u.ContentType, "image/") {
		return fmt.Errorf("%w: only image uploads are accepted", ErrValidation)
	}
	if u.Size <= 0 {
		return fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if u.Size > MaxImageSize {
		return fmt.Errorf("%w: image must be at most 5MB", ErrValidation)
	}
	return nil
}

// UploadImage stores an image under folder and returns its public URL.
// A nil store means uploads are not configured.
func UploadImage(ctx context.Context, store MediaStore, folder string, u ImageUpload) (string, error) {
	if store == nil {
		return "", fmt.Errorf("%w: media storage is not configured", ErrUnavailable)
	}
	if err := u.Validate(); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(u.Filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(u.ContentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	key := path.Join("uteshop", folder, ids.New()+ext)
	return store.Upload(ctx, key, u.Body, u.Size, u.ContentType)
}
