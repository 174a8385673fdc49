package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const serviceName = "Media host"

var errNotConfigured = errors.New("media host credentials are not configured")

// uploadAPI is the part of the Cloudinary upload client used here.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryHost implements Host on Cloudinary.
type CloudinaryHost struct {
	api uploadAPI
}

// NewCloudinaryHost creates a Host from account credentials.
func NewCloudinaryHost(cloudName, apiKey, apiSecret string) (*CloudinaryHost, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errNotConfigured
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return &CloudinaryHost{api: &cld.Upload}, nil
}

func (h *CloudinaryHost) Upload(ctx context.Context, file File, opts UploadOptions) (*models.Media, error) {
	ctx, span := observability.GetTraceLayer().TraceUpstream(ctx, "cloudinary", "upload")
	defer span.End()

	res, err := h.api.Upload(ctx, file.Reader(), uploadParams(opts))
	if err == nil && res != nil && res.Error.Message != "" {
		err = errors.New(res.Error.Message)
	}
	if err == nil && (res == nil || res.PublicID == "") {
		err = errors.New("empty upload result")
	}
	if err != nil {
		span.RecordError(err)
		observability.LogUpstreamFailure(ctx, "cloudinary", "upload", err)
		return nil, models.NewUpstreamError(serviceName, err)
	}
	return &models.Media{PublicID: res.PublicID, SecureURL: res.SecureURL}, nil
}

// Destroy removes an asset. Attachments may be videos, so a miss on the
// image resource type is retried as a video.
func (h *CloudinaryHost) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	ctx, span := observability.GetTraceLayer().TraceUpstream(ctx, "cloudinary", "destroy")
	defer span.End()

	var err error
	for _, resourceType := range []string{"image", "video"} {
		var res *uploader.DestroyResult
		res, err = h.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: resourceType})
		if err == nil && res != nil && res.Error.Message != "" {
			err = errors.New(res.Error.Message)
		}
		if err != nil {
			break
		}
		if res == nil || res.Result != "not found" {
			return nil
		}
	}
	if err != nil {
		span.RecordError(err)
		observability.LogUpstreamFailure(ctx, "cloudinary", "destroy", err)
		return models.NewUpstreamError(serviceName, err)
	}
	return nil
}

func uploadParams(opts UploadOptions) uploader.UploadParams {
	return uploader.UploadParams{
		Folder:         opts.Folder,
		ResourceType:   opts.ResourceType,
		Transformation: transformation(opts),
	}
}

// transformation renders the incoming transformation, e.g. "c_fill,g_faces,h_250,w_250".
func transformation(opts UploadOptions) string {
	var parts []string
	if opts.Crop != "" {
		parts = append(parts, "c_"+opts.Crop)
	}
	if opts.Gravity != "" {
		parts = append(parts, "g_"+opts.Gravity)
	}
	if opts.Height > 0 {
		parts = append(parts, fmt.Sprintf("h_%d", opts.Height))
	}
	if opts.Width > 0 {
		parts = append(parts, fmt.Sprintf("w_%d", opts.Width))
	}
	return strings.Join(parts, ",")
}
