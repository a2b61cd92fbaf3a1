package core_test

//go:generate mockgen -source=media.go -destination=mocks/mock_media.go -package=mocks MediaStore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/core/mocks"
)

func TestUploadImage(t *testing.T) {
	ctx := context.Background()

	t.Run("stores under the folder with the file extension", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockMediaStore(ctrl)
		store.EXPECT().
			Upload(gomock.Any(), gomock.Any(), gomock.Any(), int64(4), "image/png").
			DoAndReturn(func(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
				assert.True(t, strings.HasPrefix(key, "uteshop/products/"), key)
				assert.True(t, strings.HasSuffix(key, ".png"), key)
				raw, err := io.ReadAll(body)
				require.NoError(t, err)
				assert.Equal(t, "\x89PNG", string(raw))
				return "https://cdn.example.vn/" + key, nil
			})

		url, err := core.UploadImage(ctx, store, "products", core.ImageUpload{
			Filename:    "Ao.PNG",
			ContentType: "image/png",
			Size:        4,
			Body:        strings.NewReader("\x89PNG"),
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "https://cdn.example.vn/uteshop/products/"))
	})

	t.Run("rejects non images and oversize files", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockMediaStore(ctrl)

		_, err := core.UploadImage(ctx, store, "products", core.ImageUpload{Filename: "a.pdf", ContentType: "application/pdf", Size: 10})
		assert.ErrorIs(t, err, core.ErrValidation)

		_, err = core.UploadImage(ctx, store, "products", core.ImageUpload{Filename: "a.jpg", ContentType: "image/jpeg", Size: core.MaxImageSize + 1})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("unconfigured storage", func(t *testing.T) {
		_, err := core.UploadImage(ctx, nil, "avatars", core.ImageUpload{Filename: "a.jpg", ContentType: "image/jpeg", Size: 1})
		assert.ErrorIs(t, err, core.ErrUnavailable)
	})
}
