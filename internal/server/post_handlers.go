package server

import (
	"inkwell/internal/middleware"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postRequest is the body of create and update. Lists accept an array or a
// comma-separated string of names or ids.
type postRequest struct {
	Title       *string    `json:"title" form:"title"`
	Content     *string    `json:"content" form:"content"`
	Categories  stringList `json:"categories" form:"categories"`
	Tags        stringList `json:"tags" form:"tags"`
	IsPublished *bool      `json:"isPublished" form:"isPublished"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreatePost handles POST /api/v1/post/create
// @Summary Create a post
// @Description Create a post with an optional thumbnail and up to five media files
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param categories formData string false "Category names or ids, comma separated"
// @Param tags formData string false "Tag names or ids, comma separated"
// @Param isPublished formData bool false "Publish immediately"
// @Param avatar formData file false "Thumbnail"
// @Param media formData file false "Media files"
// @Success 201 {object} object{success=bool,message=string,data=service.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /v1/post/create [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	files, err := s.readUploads(c, true)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), middleware.ActorFrom(c), service.CreatePostInput{
		Title:       deref(req.Title),
		Content:     deref(req.Content),
		Categories:  req.Categories.normalize(),
		Tags:        req.Tags.normalize(),
		IsPublished: req.IsPublished,
		Avatar:      files.Avatar,
		Media:       files.Media,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Post created successfully", post)
}

// GetPosts handles GET /api/v1/post/all
// @Summary List posts
// @Description Newest first, optionally filtered by published state and category names
// @Tags posts
// @Produce json
// @Param published query string false "true or false"
// @Param category query string false "Comma separated category names"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} object{success=bool,message=string,data=service.PostPage}
// @Router /v1/post/all [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	in := service.ListPostsInput{
		Categories: c.Query("category"),
		Page:       c.QueryInt("page", 1),
		Limit:      c.QueryInt("limit", 10),
	}
	if raw := c.Query("published"); raw != "" {
		published := raw == "true"
		in.Published = &published
	}

	page, err := s.postService.ListPosts(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Posts fetched successfully", page)
}

// SearchPosts handles GET /api/v1/post/filtersearch
// @Summary Search published posts
// @Tags posts
// @Produce json
// @Param search query string false "Text matched against title and content"
// @Param tag query string false "Tag ID"
// @Param category query string false "Category ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size, at most 50" default(10)
// @Success 200 {object} object{success=bool,message=string,data=service.SearchResult}
// @Failure 400 {object} models.ErrorResponse
// @Router /v1/post/filtersearch [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	result, err := s.postService.SearchPosts(c.UserContext(), service.SearchPostsInput{
		Search:   c.Query("search"),
		Tag:      c.Query("tag"),
		Category: c.Query("category"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 10),
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Posts fetched successfully", result)
}

// GetPost handles GET /api/v1/post/getpost/:id
// @Summary Get a post with its comments
// @Description Drafts are only visible to their author and admins
// @Tags posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string,data=service.PostDetail}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/getpost/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post fetched successfully", post)
}

// GetRelatedPosts handles GET /api/v1/post/related/:id
// @Summary Related posts
// @Description Published posts sharing a category or tag, newest first
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string,data=[]service.PostView}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/related/{id} [get]
func (s *Server) GetRelatedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.RelatedPosts(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Related posts fetched successfully", posts)
}

// IncrementViews handles PUT /api/v1/post/:id/views
// @Summary Count a view
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string,data=object{views=int}}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/{id}/views [put]
func (s *Server) IncrementViews(c *fiber.Ctx) error {
	views, err := s.postService.IncrementView(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "View counted", fiber.Map{"views": views})
}

// UpdatePost handles PUT /api/v1/post/:id
// @Summary Update a post
// @Description Owner or admin. Omitted fields are unchanged, uploaded media is appended
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string,data=service.PostView}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	files, err := s.readUploads(c, true)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), service.UpdatePostInput{
		Title:       req.Title,
		Content:     req.Content,
		Categories:  req.Categories.normalize(),
		Tags:        req.Tags.normalize(),
		IsPublished: req.IsPublished,
		Avatar:      files.Avatar,
		Media:       files.Media,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post updated successfully", post)
}

// DeletePost handles DELETE /api/v1/post/:id
// @Summary Delete a post
// @Description Owner or admin. Removes its comments, likes and bookmarks
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.DeletePost(c.UserContext(), middleware.ActorFrom(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Post deleted successfully", nil)
}

// ToggleLike handles POST /api/v1/post/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string,data=service.LikeResult}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	result, err := s.postService.ToggleLike(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	message := "Post unliked"
	if result.Liked {
		message = "Post liked"
	}
	return respond(c, fiber.StatusOK, message, result)
}

// CreateComment handles POST /api/v1/post/:id/comment
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} object{success=bool,message=string,data=service.CommentView}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/{id}/comment [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content" form:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	comment, err := s.postService.AddComment(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusCreated, "Comment added successfully", comment)
}

// GetComments handles GET /api/v1/post/:id/comment
// @Summary List a post's comments
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} object{success=bool,message=string,data=[]service.CommentView}
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/post/{id}/comment [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.postService.ListComments(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, "Comments fetched successfully", comments)
}
