package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComment handles GET /api/v1/comment/get/:id
// @Summary Get a comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Comment ID"
// @Success 200 {object} object{success=bool,message=string,data=service.CommentView}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/comment/get/{id} [get]
func (s *Server) GetComment(c *fiber.Ctx) error {
	comment, err := s.commentService.GetComment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment fetched successfully", comment)
}

// UpdateComment handles PUT /api/v1/comment/update/:id
// @Summary Edit a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Comment ID"
// @Param request body service.UpdateCommentInput true "New content"
// @Success 200 {object} object{success=bool,message=string,data=service.CommentView}
// @Failure 403 {object} models.ErrorResponse
// @Router /v1/comment/update/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	var in service.UpdateCommentInput
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment updated successfully", comment)
}

// DeleteComment handles DELETE /api/v1/comment/delete/:id
// @Summary Delete a comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Comment ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/comment/delete/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	if err := s.commentService.DeleteComment(c.UserContext(), middleware.ActorFrom(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comment deleted successfully", nil)
}
