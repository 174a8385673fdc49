package service

import (
	"context"
	"fmt"

	"inkwell/internal/media"
	"inkwell/internal/models"
	"inkwell/internal/observability"
)

// UploadPolicy configures where and how large uploads go.
type UploadPolicy struct {
	Host     media.Host
	Folder   string
	MaxBytes int64
}

func (p UploadPolicy) host() media.Host {
	if p.Host == nil {
		return media.Disabled{}
	}
	return p.Host
}

func (p UploadPolicy) maxBytes() int64 {
	if p.MaxBytes <= 0 {
		return media.DefaultMaxUploadSizeMB << 20
	}
	return p.MaxBytes
}

// validateAvatar accepts a single image file.
func (p UploadPolicy) validateAvatar(f *media.File) error {
	if f == nil {
		return nil
	}
	if err := media.ValidateFile(*f, p.maxBytes()); err != nil {
		return err
	}
	if f.IsVideo() {
		return models.NewFieldError("avatar", "avatar must be an image")
	}
	return nil
}

func (p UploadPolicy) validateMedia(files []media.File, existing int) error {
	if existing+len(files) > models.MaxPostMediaFiles {
		return models.NewFieldError("media", fmt.Sprintf("a post can have at most %d media files", models.MaxPostMediaFiles))
	}
	for _, f := range files {
		if err := media.ValidateFile(f, p.maxBytes()); err != nil {
			return err
		}
	}
	return nil
}

// uploadBatch remembers what it uploaded so a failed operation can release it.
type uploadBatch struct {
	policy   UploadPolicy
	uploaded []string
}

func (p UploadPolicy) batch() *uploadBatch {
	return &uploadBatch{policy: p}
}

func (b *uploadBatch) avatar(ctx context.Context, f *media.File) (models.Media, error) {
	if f == nil {
		return models.Media{}, nil
	}
	return b.upload(ctx, *f, media.Avatar(b.policy.Folder))
}

func (b *uploadBatch) media(ctx context.Context, files []media.File) ([]models.Media, error) {
	out := make([]models.Media, 0, len(files))
	for _, f := range files {
		m, err := b.upload(ctx, f, media.Attachment(b.policy.Folder))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *uploadBatch) upload(ctx context.Context, f media.File, opts media.UploadOptions) (models.Media, error) {
	m, err := b.policy.host().Upload(ctx, f, opts)
	if err != nil {
		return models.Media{}, err
	}
	b.uploaded = append(b.uploaded, m.PublicID)
	return *m, nil
}

// rollback destroys everything uploaded by the batch.
func (b *uploadBatch) rollback(ctx context.Context) {
	for _, id := range b.uploaded {
		if err := b.policy.host().Destroy(ctx, id); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to roll back upload",
				"public_id", id, "error", err.Error())
		}
	}
	b.uploaded = nil
}
