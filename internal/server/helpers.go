package server

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"inkwell/internal/media"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// respond writes the success envelope shared by every endpoint.
func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	body := fiber.Map{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

// respondError maps a service error to its status. Server-side failures are
// logged with the request context before the sanitized body is written.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusCode(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err.Error(),
		)
		observability.RecordErrorInContext(c.UserContext(), err)
	}
	return models.RespondWithError(c, status, err)
}

// stringList accepts either a JSON array or a comma-separated string.
// A present but empty value decodes to an empty, non-nil list.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var many []string
	if err := json.Unmarshal(b, &many); err == nil {
		*l = splitEntries(many)
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return fmt.Errorf("expected a list or a comma-separated string")
	}
	*l = splitEntries([]string{one})
	return nil
}

// normalize flattens comma-separated entries. A nil list stays nil.
func (l stringList) normalize() []string {
	if l == nil {
		return nil
	}
	return splitEntries(l)
}

func splitEntries(values []string) []string {
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseBody decodes JSON, urlencoded or multipart bodies into dst. An empty
// body leaves dst untouched.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// uploads is the set of files attached to a multipart request.
type uploads struct {
	Avatar *media.File
	Media  []media.File
}

// readUploads loads the avatar and media parts of a multipart request. Non
// multipart requests carry no files.
func (s *Server) readUploads(c *fiber.Ctx, allowMedia bool) (uploads, error) {
	var out uploads
	if !isMultipart(c) {
		return out, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return out, models.NewValidationError("Invalid multipart form")
	}

	avatars := form.File["avatar"]
	if len(avatars) > 1 {
		return out, models.NewFieldError("avatar", "Only one avatar may be uploaded")
	}
	if len(avatars) == 1 {
		f, err := media.ReadFile(avatars[0], s.uploadMaxBytes)
		if err != nil {
			return out, err
		}
		out.Avatar = &f
	}

	attachments := append(append([]*multipart.FileHeader{}, form.File["media"]...), form.File["media[]"]...)
	if len(attachments) == 0 {
		return out, nil
	}
	if !allowMedia {
		return out, models.NewFieldError("media", "Media files are not accepted here")
	}
	if len(attachments) > models.MaxPostMediaFiles {
		return out, models.NewFieldError("media",
			fmt.Sprintf("At most %d media files may be uploaded", models.MaxPostMediaFiles))
	}
	for _, fh := range attachments {
		f, err := media.ReadFile(fh, s.uploadMaxBytes)
		if err != nil {
			return out, err
		}
		out.Media = append(out.Media, f)
	}
	return out, nil
}

// setTokenCookie stores the session token for browser clients.
func (s *Server) setTokenCookie(c *fiber.Ctx, token string) {
	c.Cookie(s.tokenCookie(token, int(s.tokens.Expiry().Seconds())))
}

func (s *Server) clearTokenCookie(c *fiber.Ctx) {
	cookie := s.tokenCookie("", -1)
	cookie.Expires = time.Unix(0, 0)
	c.Cookie(cookie)
}

func (s *Server) tokenCookie(value string, maxAge int) *fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if s.config.CookieSecure {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	return &fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: sameSite,
	}
}
