package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/v1/user/register
// @Summary Register a user
// @Description Create an account with an optional avatar and start a session
// @Tags user
// @Accept json,mpfd
// @Produce json
// @Param name formData string true "Display name"
// @Param email formData string true "Email address"
// @Param password formData string true "Password"
// @Param bio formData string false "Short biography"
// @Param avatar formData file false "Avatar image"
// @Success 201 {object} object{success=bool,message=string,data=service.AuthResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /v1/user/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	files, err := s.readUploads(c, false)
	if err != nil {
		return respondError(c, err)
	}
	in.Avatar = files.Avatar

	result, err := s.userService.Register(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}

	s.setTokenCookie(c, result.Token)
	return respond(c, fiber.StatusCreated, "User registered successfully", result)
}

// Login handles POST /api/v1/user/login
// @Summary User login
// @Description Authenticate with email and password and receive a session token
// @Tags user
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} object{success=bool,message=string,data=service.AuthResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /v1/user/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := s.userService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	s.setTokenCookie(c, result.Token)
	return respond(c, fiber.StatusOK, "Logged in successfully", result)
}

// Logout handles GET /api/v1/user/logout
// @Summary User logout
// @Description Revoke the presented token and clear the session cookie
// @Tags user
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Router /v1/user/logout [get]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.userService.Logout(c.UserContext(), middleware.ClaimsFrom(c)); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "token revocation failed", "error", err.Error())
	}
	s.clearTokenCookie(c)
	return respond(c, fiber.StatusOK, "Logged out successfully", nil)
}

// Me handles GET /api/v1/user/me
// @Summary Current user
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string,data=service.UserView}
// @Failure 401 {object} models.ErrorResponse
// @Router /v1/user/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.Me(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "User details", user)
}

// ForgotPassword handles POST /api/v1/user/forgot-password
// @Summary Request a password reset link
// @Tags user
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Account email"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /v1/user/forgot-password [post]
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := s.userService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Reset password link has been sent to "+req.Email, nil)
}

// ResetPassword handles POST /api/v1/user/reset-password/:resetToken
// @Summary Reset a password with an emailed token
// @Tags user
// @Accept json
// @Produce json
// @Param resetToken path string true "Reset token"
// @Param request body object{password=string} true "New password"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /v1/user/reset-password/{resetToken} [post]
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password" form:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := s.userService.ResetPassword(c.UserContext(), c.Params("resetToken"), req.Password); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Password changed successfully", nil)
}

// ChangePassword handles POST /api/v1/user/changepassword
// @Summary Change the current password
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ChangePasswordInput true "Old and new password"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /v1/user/changepassword [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var in service.ChangePasswordInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	if err := s.userService.ChangePassword(c.UserContext(), middleware.ActorFrom(c), in); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Password changed successfully", nil)
}

// UpdateProfile handles PUT /api/v1/user/update/:id
// @Summary Update a profile
// @Description Owner or admin; replaces the avatar when one is uploaded
// @Tags user
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param fullName formData string false "Display name"
// @Param bio formData string false "Short biography"
// @Param avatar formData file false "Avatar image"
// @Success 200 {object} object{success=bool,message=string,data=service.UserView}
// @Failure 403 {object} models.ErrorResponse
// @Router /v1/user/update/{id} [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	files, err := s.readUploads(c, false)
	if err != nil {
		return respondError(c, err)
	}
	in.Avatar = files.Avatar

	user, err := s.userService.UpdateProfile(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Profile updated successfully", user)
}

// ToggleBookmark handles POST /api/v1/user/bookmark/:postId
// @Summary Bookmark or unbookmark a post
// @Tags user
// @Produce json
// @Security BearerAuth
// @Param postId path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string,data=service.BookmarkResult}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/user/bookmark/{postId} [post]
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	result, err := s.userService.ToggleBookmark(c.UserContext(), middleware.ActorFrom(c), c.Params("postId"))
	if err != nil {
		return respondError(c, err)
	}
	message := "Post removed from bookmarks"
	if result.Bookmarked {
		message = "Post bookmarked"
	}
	return respond(c, fiber.StatusOK, message, result)
}

// GetBookmarks handles GET /api/v1/user/getbookmarkpost
// @Summary List bookmarked posts
// @Tags user
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string,data=[]service.PostView}
// @Router /v1/user/getbookmarkpost [get]
func (s *Server) GetBookmarks(c *fiber.Ctx) error {
	posts, err := s.userService.Bookmarks(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Bookmarked posts", posts)
}

