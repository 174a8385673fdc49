package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Categories and tags share one set of handlers parameterized by service.

func termLabel(svc *service.TaxonomyService) string {
	return string(svc.Kind())
}

func listTerms(svc *service.TaxonomyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		terms, err := svc.List(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, termLabel(svc)+" list fetched successfully", terms)
	}
}

func getTerm(svc *service.TaxonomyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		term, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, termLabel(svc)+" fetched successfully", term)
	}
}

func createTerm(svc *service.TaxonomyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.CreateTermInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		term, err := svc.Create(c.UserContext(), middleware.ActorFrom(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, termLabel(svc)+" created successfully", term)
	}
}

func updateTerm(svc *service.TaxonomyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.UpdateTermInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		term, err := svc.Update(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, termLabel(svc)+" updated successfully", term)
	}
}

func deleteTerm(svc *service.TaxonomyService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), middleware.ActorFrom(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, termLabel(svc)+" deleted successfully", nil)
	}
}

// ListCategories handles GET /api/v1/category/all
// @Summary List categories
// @Description Sorted by name
// @Tags taxonomy
// @Produce json
// @Success 200 {object} object{success=bool,message=string,data=[]models.Term}
// @Router /v1/category/all [get]
func (s *Server) ListCategories(c *fiber.Ctx) error {
	return listTerms(s.categoryService)(c)
}

// GetCategory handles GET /api/v1/category/get/:id
// @Summary Get a category
// @Tags taxonomy
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} object{success=bool,message=string,data=models.Term}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/category/get/{id} [get]
func (s *Server) GetCategory(c *fiber.Ctx) error {
	return getTerm(s.categoryService)(c)
}

// ListTags handles GET /api/v1/tag/all
// @Summary List tags
// @Description Sorted by name
// @Tags taxonomy
// @Produce json
// @Success 200 {object} object{success=bool,message=string,data=[]models.Term}
// @Router /v1/tag/all [get]
func (s *Server) ListTags(c *fiber.Ctx) error {
	return listTerms(s.tagService)(c)
}

// GetTag handles GET /api/v1/tag/:id
// @Summary Get a tag
// @Tags taxonomy
// @Produce json
// @Param id path string true "Tag ID"
// @Success 200 {object} object{success=bool,message=string,data=models.Term}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/tag/{id} [get]
func (s *Server) GetTag(c *fiber.Ctx) error {
	return getTerm(s.tagService)(c)
}

// CreateCategory handles POST /api/v1/admin/createcategory
// @Summary Create a category
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateTermInput true "Category"
// @Success 201 {object} object{success=bool,message=string,data=models.Term}
// @Failure 409 {object} models.ErrorResponse
// @Router /v1/admin/createcategory [post]
func (s *Server) CreateCategory(c *fiber.Ctx) error {
	return createTerm(s.categoryService)(c)
}

// UpdateCategory handles PUT /api/v1/admin/updatecategory/:id
// @Summary Update a category
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Param request body service.UpdateTermInput true "Changes"
// @Success 200 {object} object{success=bool,message=string,data=models.Term}
// @Router /v1/admin/updatecategory/{id} [put]
func (s *Server) UpdateCategory(c *fiber.Ctx) error {
	return updateTerm(s.categoryService)(c)
}

// DeleteCategory handles DELETE /api/v1/admin/deletecategory/:id
// @Summary Delete a category
// @Description Also removes it from every post
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Category ID"
// @Success 200 {object} object{success=bool,message=string}
// @Router /v1/admin/deletecategory/{id} [delete]
func (s *Server) DeleteCategory(c *fiber.Ctx) error {
	return deleteTerm(s.categoryService)(c)
}

// CreateTag handles POST /api/v1/admin/createtag
// @Summary Create a tag
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateTermInput true "Tag"
// @Success 201 {object} object{success=bool,message=string,data=models.Term}
// @Failure 409 {object} models.ErrorResponse
// @Router /v1/admin/createtag [post]
func (s *Server) CreateTag(c *fiber.Ctx) error {
	return createTerm(s.tagService)(c)
}

// UpdateTag handles PUT /api/v1/admin/updatetag/:id
// @Summary Update a tag
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tag ID"
// @Param request body service.UpdateTermInput true "Changes"
// @Success 200 {object} object{success=bool,message=string,data=models.Term}
// @Router /v1/admin/updatetag/{id} [put]
func (s *Server) UpdateTag(c *fiber.Ctx) error {
	return updateTerm(s.tagService)(c)
}

// DeleteTag handles DELETE /api/v1/admin/deletetag/:id
// @Summary Delete a tag
// @Description Also removes it from every post
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tag ID"
// @Success 200 {object} object{success=bool,message=string}
// @Router /v1/admin/deletetag/{id} [delete]
func (s *Server) DeleteTag(c *fiber.Ctx) error {
	return deleteTerm(s.tagService)(c)
}
