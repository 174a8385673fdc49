// Package media stores avatars and post attachments on an external media host.
package media

import (
	"context"
	"path"

	"inkwell/internal/models"
)

// Host uploads and removes assets on the media host.
type Host interface {
	Upload(ctx context.Context, file File, opts UploadOptions) (*models.Media, error)
	Destroy(ctx context.Context, publicID string) error
}

// UploadOptions controls where an asset is stored and how it is transformed.
type UploadOptions struct {
	Folder       string
	Width        int
	Height       int
	Crop         string
	Gravity      string
	ResourceType string
}

// Avatar is the preset for profile and cover pictures: a 250x250 face-centred fill.
func Avatar(root string) UploadOptions {
	return UploadOptions{
		Folder:  path.Join(root, "avatar"),
		Width:   250,
		Height:  250,
		Crop:    "fill",
		Gravity: "faces",
	}
}

// Attachment is the preset for post media; the host detects image or video.
func Attachment(root string) UploadOptions {
	return UploadOptions{
		Folder:       path.Join(root, "media"),
		ResourceType: "auto",
	}
}

// Disabled is used when no media host is configured. Uploads fail with an
// UpstreamError and destroys succeed without doing anything.
type Disabled struct{}

func (Disabled) Upload(context.Context, File, UploadOptions) (*models.Media, error) {
	return nil, models.NewUpstreamError("Media host", errNotConfigured)
}

func (Disabled) Destroy(context.Context, string) error {
	return nil
}
