package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"inkwell/internal/models"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Upload limits.
const (
	DefaultMaxUploadSizeMB = 50
	MaxAvatarFiles         = 1
	MaxMediaFiles          = models.MaxPostMediaFiles
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".webp": {},
	".png":  {},
	".mp4":  {},
}

// File is an uploaded file held in memory until it is sent to the host.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Reader returns a fresh reader over the file content.
func (f File) Reader() io.Reader {
	return bytes.NewReader(f.Content)
}

// Ext returns the lower-cased file extension including the dot.
func (f File) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// IsVideo reports whether the file is an mp4 upload.
func (f File) IsVideo() bool {
	return f.Ext() == ".mp4"
}

// ReadFile loads a multipart file, rejecting it early when it exceeds maxBytes.
func ReadFile(fh *multipart.FileHeader, maxBytes int64) (File, error) {
	if fh.Size > maxBytes {
		return File{}, tooLarge(fh.Filename, maxBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return File{}, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(io.LimitReader(src, maxBytes+1))
	if err != nil {
		return File{}, models.NewValidationError("Unable to read uploaded file")
	}
	if int64(len(content)) > maxBytes {
		return File{}, tooLarge(fh.Filename, maxBytes)
	}
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func tooLarge(name string, maxBytes int64) error {
	return models.NewFieldError("file", fmt.Sprintf("%s is too large (max %dMB)", name, maxBytes/(1024*1024)))
}

// ValidateFile checks the extension, size and content of an upload. Image
// content must decode as the format its extension claims.
func ValidateFile(f File, maxBytes int64) error {
	ext := f.Ext()
	if _, ok := allowedExtensions[ext]; !ok {
		return models.NewFieldError("file", fmt.Sprintf("Unsupported file type %q", ext))
	}
	if len(f.Content) == 0 {
		return models.NewFieldError("file", "No file uploaded")
	}
	if int64(len(f.Content)) > maxBytes {
		return tooLarge(f.Name, maxBytes)
	}

	detected := http.DetectContentType(f.Content)
	if f.IsVideo() {
		if normalizeContentType(detected) != "video/mp4" {
			return models.NewFieldError("file", "Invalid video file")
		}
		return nil
	}
	_, err := SniffImage(f)
	return err
}

// SniffImage decodes the image header and returns its MIME type.
func SniffImage(f File) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(f.Content))
	if err != nil {
		return "", models.NewFieldError("file", "Invalid image file")
	}
	detected := decodedFormatToMime(format)
	if detected == "" {
		return "", models.NewFieldError("file", "Unsupported image format")
	}
	if !isMatchingExtension(f.Ext(), detected) {
		return "", models.NewFieldError("file", "Image content does not match its extension")
	}
	if provided := normalizeContentType(f.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detected) {
		return "", models.NewFieldError("file", "Image content type mismatch")
	}
	return detected, nil
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isMatchingExtension(ext, detected string) bool {
	switch ext {
	case ".jpg", ".jpeg":
		return detected == "image/jpeg"
	case ".png":
		return detected == "image/png"
	case ".webp":
		return detected == "image/webp"
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
