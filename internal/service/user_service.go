package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/mailer"
	"inkwell/internal/media"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// ResetTokenTTL is how long a password reset link stays valid.
const ResetTokenTTL = 15 * time.Minute

// TokenIssuer signs and revokes session tokens.
type TokenIssuer interface {
	Issue(actor *models.Actor) (string, error)
	Revoke(ctx context.Context, claims *auth.Claims) error
}

type UserService struct {
	users       repository.UserRepository
	posts       *PostService
	integrity   *IntegrityManager
	tokens      TokenIssuer
	mail        mailer.Mailer
	uploads     UploadPolicy
	frontendURL string
	now         func() time.Time
}

type RegisterInput struct {
	Name       string      `json:"name" form:"name"`
	Email      string      `json:"email" form:"email"`
	Password   string      `json:"password" form:"password"`
	Bio        string      `json:"bio" form:"bio" validate:"max=500"`
	Newsletter bool        `json:"newsletterSubscribed" form:"newsletterSubscribed"`
	Avatar     *media.File `json:"-" form:"-"`
}

type UpdateProfileInput struct {
	FullName   *string     `json:"fullName" form:"fullName"`
	Bio        *string     `json:"bio" form:"bio" validate:"omitempty,max=500"`
	Newsletter *bool       `json:"newsletterSubscribed" form:"newsletterSubscribed"`
	Avatar     *media.File `json:"-" form:"-"`
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type BookmarkResult struct {
	Bookmarked bool       `json:"bookmarked"`
	Bookmarks  []PostView `json:"bookmarks"`
}

func NewUserService(
	users repository.UserRepository,
	posts *PostService,
	integrity *IntegrityManager,
	tokens TokenIssuer,
	mail mailer.Mailer,
	uploads UploadPolicy,
	frontendURL string,
) *UserService {
	if mail == nil {
		mail = mailer.LogMailer{}
	}
	return &UserService{
		users:       users,
		posts:       posts,
		integrity:   integrity,
		tokens:      tokens,
		mail:        mail,
		uploads:     uploads,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Bio = strings.TrimSpace(in.Bio)
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, models.NewFieldError("name", err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewFieldError("email", err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewFieldError("password", err.Error())
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.uploads.validateAvatar(in.Avatar); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	batch := s.uploads.batch()
	avatar := models.Media{SecureURL: models.DefaultAvatarURL}
	if in.Avatar != nil {
		if avatar, err = batch.avatar(ctx, in.Avatar); err != nil {
			return nil, err
		}
	}

	user := &models.User{
		Name:                 in.Name,
		Email:                in.Email,
		Password:             string(hash),
		Role:                 models.RoleAuthor,
		Bio:                  in.Bio,
		Avatar:               avatar,
		NewsletterSubscribed: in.Newsletter,
		IsActive:             true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		batch.rollback(ctx)
		return nil, err
	}
	return s.session(user)
}

func (s *UserService) session(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(models.ActorFromUser(user))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: NewUserView(user)}, nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthenticatedError("Invalid credentials")
	}
	if !user.IsActive {
		return nil, models.NewForbiddenError("Account is disabled")
	}
	return s.session(user)
}

// Logout revokes the presented token.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}
	return s.tokens.Revoke(ctx, claims)
}

func (s *UserService) Me(ctx context.Context, actor *models.Actor) (*UserView, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	view := NewUserView(user)
	return &view, nil
}

// ForgotPassword stores a hashed reset token and mails the reset link. When
// the mail cannot be sent the token is cleared again.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.NewFieldError("email", "email is required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return &models.AppError{Code: models.CodeNotFound, Message: "No account is registered with this email"}
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return models.NewInternalError(err)
	}
	token := hex.EncodeToString(raw)
	if err := s.users.SetResetToken(ctx, user.ID, hashResetToken(token), s.now().Add(ResetTokenTTL)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password/%s", s.frontendURL, token)
	body, err := mailer.ResetPasswordEmail(user.Name, user.Email, link, fmt.Sprintf("%d minutes", int(ResetTokenTTL.Minutes())))
	if err == nil {
		err = s.mail.Send(ctx, user.Email, mailer.SubjectResetPassword, body)
	}
	if err != nil {
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			observability.GlobalLogger.ErrorContext(ctx, "failed to clear reset token",
				"user_id", user.ID.Hex(), "error", clearErr.Error())
		}
		if models.IsCode(err, models.CodeUpstream) {
			return err
		}
		return models.NewUpstreamError("Mail server", err)
	}
	return nil
}

// ResetPassword sets a new password using an unexpired reset token.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return models.NewFieldError("resetToken", "reset token is required")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewFieldError("password", err.Error())
	}
	user, err := s.users.GetByResetToken(ctx, hashResetToken(token), s.now())
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewFieldError("resetToken", "Invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hash))
}

// ChangePassword replaces the actor's password after checking the old one.
// The confirmation mail is best effort.
func (s *UserService) ChangePassword(ctx context.Context, actor *models.Actor, in ChangePasswordInput) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if err := validation.Struct(in); err != nil {
		return err
	}
	if err := validation.ValidatePassword(in.NewPassword); err != nil {
		return models.NewFieldError("newPassword", err.Error())
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.OldPassword)) != nil {
		return models.NewFieldError("oldPassword", "Old password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	body, err := mailer.PasswordUpdatedEmail(user.Name, user.Email)
	if err == nil {
		err = s.mail.Send(ctx, user.Email, mailer.SubjectPasswordUpdated, body)
	}
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "password updated mail not sent",
			"user_id", user.ID.Hex(), "error", err.Error())
	}
	return nil
}

// UpdateProfile changes the name, bio, newsletter flag or avatar of a user.
// A new avatar replaces the old one, which is destroyed first.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.Actor, rawID string, in UpdateProfileInput) (*UserView, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	if err := OwnerOrAdmin(actor, id, "update this profile"); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.uploads.validateAvatar(in.Avatar); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if err := validation.ValidateName(name); err != nil {
			return nil, models.NewFieldError("fullName", err.Error())
		}
		user.Name = name
	}
	if in.Bio != nil {
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Newsletter != nil {
		user.NewsletterSubscribed = *in.Newsletter
	}

	batch := s.uploads.batch()
	if in.Avatar != nil {
		if old := user.Avatar.PublicID; old != "" {
			if err := s.uploads.host().Destroy(ctx, old); err != nil {
				return nil, err
			}
		}
		if user.Avatar, err = batch.avatar(ctx, in.Avatar); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		batch.rollback(ctx)
		return nil, err
	}
	view := NewUserView(user)
	return &view, nil
}

// ToggleBookmark bookmarks the post for the actor, or removes the bookmark.
func (s *UserService) ToggleBookmark(ctx context.Context, actor *models.Actor, rawPostID string) (*BookmarkResult, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	postID, err := models.ParseID(rawPostID, "postId")
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	user, err := s.users.ToggleBookmark(ctx, actor.ID, postID)
	if err != nil {
		return nil, err
	}
	bookmarks, err := s.posts.PostsByIDs(ctx, user.Bookmarks)
	if err != nil {
		return nil, err
	}
	return &BookmarkResult{
		Bookmarked: models.ContainsID(user.Bookmarks, postID),
		Bookmarks:  bookmarks,
	}, nil
}

// Bookmarks lists the actor's bookmarked posts in bookmark order.
func (s *UserService) Bookmarks(ctx context.Context, actor *models.Actor) ([]PostView, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.posts.PostsByIDs(ctx, user.Bookmarks)
}

// ListUsers returns every user, newest first. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *models.Actor) ([]UserView, error) {
	if err := AdminOnly(actor); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, NewUserView(&users[i]))
	}
	return views, nil
}

// GetUser returns one profile to its owner or an admin.
func (s *UserService) GetUser(ctx context.Context, actor *models.Actor, rawID string) (*UserView, error) {
	if err := RequireActor(actor); err != nil {
		return nil, err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return nil, err
	}
	if err := OwnerOrAdmin(actor, id, "view this user"); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewUserView(user)
	return &view, nil
}

// DeleteUser removes the user with everything they authored.
func (s *UserService) DeleteUser(ctx context.Context, actor *models.Actor, rawID string) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	id, err := models.ParseID(rawID, "id")
	if err != nil {
		return err
	}
	if err := OwnerOrAdmin(actor, id, "delete this user"); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.integrity.DeleteUser(ctx, user)
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
