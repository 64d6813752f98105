// Package storage is the blob layer behind box images and avatars.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/pkg/slug"
)

// Storage stores objects in a single bucket.
type Storage interface {
	// Upload stores an object and returns its key and public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the URL clients use to fetch key.
	PublicURL(key string) string
}

// UploadInput holds the parameters for uploading an object.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// sniffLen matches what mimetype reads by default.
const sniffLen = 3072

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Image is an upload whose content type was detected from its bytes.
type Image struct {
	ContentType string
	Ext         string
	Data        io.Reader
}

// SniffImage detects the content type of r from its leading bytes and
// rejects anything that is not a supported image. The returned reader
// yields the full content, sniffed bytes included.
func SniffImage(r io.Reader) (*Image, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apperrors.InvalidInput("empty file")
	}

	mt := mimetype.Detect(head)
	base := strings.SplitN(mt.String(), ";", 2)[0]
	ext, ok := allowedImageTypes[base]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported image type %q", base))
	}

	return &Image{
		ContentType: base,
		Ext:         ext,
		Data:        io.MultiReader(bytes.NewReader(head), r),
	}, nil
}

// BoxImageKey builds a unique key for a box image, prefixed with a slug of
// the box name when there is one.
func BoxImageKey(boxName, ext string) string {
	name := slug.Truncate(slug.Generate(boxName), 40)
	if name == "" {
		return fmt.Sprintf("book-boxes/%s%s", uuid.NewString(), ext)
	}
	return fmt.Sprintf("book-boxes/%s-%s%s", name, uuid.NewString(), ext)
}

// AvatarKey is stable per user so a new avatar replaces the old one when
// the extension matches.
func AvatarKey(userID, ext string) string {
	return fmt.Sprintf("avatars/%s%s", userID, ext)
}
