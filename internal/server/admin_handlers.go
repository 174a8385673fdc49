package server

import (
	"inkwell/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/v1/admin/all
// @Summary List every user
// @Description Admin only. Newest first with post and comment counts
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string,data=[]service.UserView}
// @Failure 403 {object} models.ErrorResponse
// @Router /v1/admin/all [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	users, err := s.userService.ListUsers(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Users fetched successfully", users)
}

// GetUser handles GET /api/v1/admin/get/:id
// @Summary Get a user
// @Description Owner or admin
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} object{success=bool,message=string,data=service.UserView}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/admin/get/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "User fetched successfully", user)
}

// DeleteUser handles DELETE /api/v1/admin/delete/:id
// @Summary Delete a user
// @Description Owner or admin. Removes the user's posts, comments, likes and media
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/admin/delete/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	if err := s.userService.DeleteUser(c.UserContext(), actor, c.Params("id")); err != nil {
		return respondError(c, err)
	}
	if actor != nil && actor.ID.Hex() == c.Params("id") {
		s.clearTokenCookie(c)
	}
	return respond(c, fiber.StatusOK, "User deleted successfully", nil)
}

// GetAllComments handles GET /api/v1/admin/allcomment
// @Summary List every comment on published posts
// @Description Admin only. Newest first
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string,data=[]service.CommentView}
// @Failure 403 {object} models.ErrorResponse
// @Router /v1/admin/allcomment [get]
func (s *Server) GetAllComments(c *fiber.Ctx) error {
	comments, err := s.commentService.ListAll(c.UserContext(), middleware.ActorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comments fetched successfully", comments)
}
