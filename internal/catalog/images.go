package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"

	"shopmirror/internal/imagestore"
	"shopmirror/internal/logger"
	"shopmirror/internal/models"

	"go.uber.org/zap"
)

type ImageFetcher interface {
	DownloadImage(ctx context.Context, src string) ([]byte, string, error)
}

// ImageMaterializer copies remote images into the image store under names
// that ignore cache-busting query strings.
type ImageMaterializer struct {
	store   imagestore.Store
	fetcher ImageFetcher
	logger  *logger.Logger
}

func NewImageMaterializer(store imagestore.Store, fetcher ImageFetcher, log *logger.Logger) *ImageMaterializer {
	return &ImageMaterializer{store: store, fetcher: fetcher, logger: log.Named("images")}
}

// LocalName derives the stored file name: basename, md5 of the query string, extension.
func LocalName(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("invalid image url %q: %w", src, err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return "", fmt.Errorf("image url %q has no file name", src)
	}
	ext := path.Ext(base)
	sum := md5.Sum([]byte(u.RawQuery))
	return strings.TrimSuffix(base, ext) + "_" + hex.EncodeToString(sum[:]) + ext, nil
}

// Materialize stores src unless a file with the derived name already exists
// and returns the stored reference.
func (m *ImageMaterializer) Materialize(ctx context.Context, src string) (string, error) {
	name, err := LocalName(src)
	if err != nil {
		return "", err
	}

	exists, err := m.store.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists {
		return m.store.Ref(name), nil
	}

	data, contentType, err := m.fetcher.DownloadImage(ctx, src)
	if err != nil {
		return "", err
	}
	return m.store.Put(ctx, name, data, contentType)
}

// MaterializeAll fills Ref on each image. Images that cannot be fetched are
// dropped with a warning; the primary flag moves to the first survivor.
func (m *ImageMaterializer) MaterializeAll(ctx context.Context, productID int64, images []models.Image) []models.Image {
	if m == nil {
		return images
	}
	kept := images[:0:0]
	for _, img := range images {
		ref, err := m.Materialize(ctx, img.Src)
		if err != nil {
			if ctx.Err() != nil {
				return kept
			}
			m.logger.Warn("skipping image",
				zap.Int64("product_id", productID),
				zap.String("src", img.Src),
				zap.Error(err),
			)
			continue
		}
		img.Ref = ref
		img.Primary = false
		kept = append(kept, img)
	}
	if len(kept) > 0 {
		kept[0].Primary = true
	}
	return kept
}
