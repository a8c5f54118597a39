package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"task-manager-api/internal/engine"
	"task-manager-api/internal/metadata"
	"task-manager-api/internal/store"
)

const (
	MsgLoggedOut        = "Successfully logged out."
	MsgInvalidSignature = "Invalid signature."
	MsgUserNotFound     = "User not found"
	MsgInvalidLink      = "Invalid verification link"
	MsgAlreadyVerified  = "Email already verified"
	MsgVerified         = "Email verified successfully"

	tokenName = "api-token"
)

// Options configures the auth handler.
type Options struct {
	Prefix    string        // route prefix, part of the signed verification path
	VerifyTTL time.Duration // lifetime of verification links
	Logger    *zap.Logger
}

// Handler serves registration, login, logout and email verification.
type Handler struct {
	store  *store.Store
	tokens *Tokens
	signer *Signer
	mailer Mailer
	loader *engine.Loader
	users  *metadata.Descriptor
	opts   Options
	now    func() time.Time
}

func NewHandler(s *store.Store, tokens *Tokens, signer *Signer, mailer Mailer, loader *engine.Loader, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		store:  s,
		tokens: tokens,
		signer: signer,
		mailer: mailer,
		loader: loader,
		users:  metadata.UserResource(),
		opts:   opts,
		now:    time.Now,
	}
}

// Register handles POST /register.
func (h *Handler) Register(c *fiber.Ctx) error {
	body, err := engine.ParseBody(c)
	if err != nil {
		return err
	}

	ctx := c.Context()
	values, fieldErrs := engine.RegisterRules.Validate(body, h.now())
	if email, ok := values["email"].(string); ok {
		taken, err := h.emailTaken(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			fieldErrs["email"] = append(fieldErrs["email"], "The email has already been taken.")
		}
	}
	if len(fieldErrs) > 0 {
		return engine.ValidationError(fieldErrs)
	}

	hash, err := HashPassword(values["password"].(string))
	if err != nil {
		return err
	}

	now := h.now().UTC()
	id, err := store.InsertReturningID(ctx, h.store.DB, h.store.Builder().Insert(h.users.Table).
		Columns("name", "email", "password", "admin", "created_at", "updated_at").
		Values(values["name"], values["email"], hash, false, now, now))
	if err != nil {
		err = store.MapError(h.store.Dialect, err)
		if errors.Is(err, store.ErrUniqueViolation) {
			return engine.ValidationError(map[string][]string{"email": {"The email has already been taken."}})
		}
		return fmt.Errorf("register user: %w", err)
	}

	token, err := h.tokens.Create(ctx, id, tokenName)
	if err != nil {
		return err
	}

	email := values["email"].(string)
	if err := h.mailer.SendVerification(ctx, email, h.VerificationURL(id, email)); err != nil {
		h.opts.Logger.Error("send verification email", zap.Int64("user_id", id), zap.Error(err))
	}

	user, err := h.user(ctx, squirrel.Eq{metadata.PrimaryKey: id})
	if err != nil {
		return err
	}
	h.opts.Logger.Info("user registered", zap.Int64("user_id", id))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user, "token": token})
}

// Login handles POST /login.
func (h *Handler) Login(c *fiber.Ctx) error {
	body, err := engine.ParseBody(c)
	if err != nil {
		return err
	}
	values, fieldErrs := engine.LoginRules.Validate(body, h.now())
	if len(fieldErrs) > 0 {
		return engine.ValidationError(fieldErrs)
	}

	ctx := c.Context()
	row, err := store.SelectOne(ctx, h.store.DB, h.store.Builder().
		Select(metadata.PrimaryKey, "password").From(h.users.Table).
		Where(squirrel.Eq{"email": values["email"]}))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.InvalidCredentialsError()
		}
		return fmt.Errorf("find user: %w", err)
	}

	hash, _ := row["password"].(string)
	if !CheckPassword(values["password"].(string), hash) {
		return engine.InvalidCredentialsError()
	}

	id, _ := row[metadata.PrimaryKey].(int64)
	token, err := h.tokens.Create(ctx, id, tokenName)
	if err != nil {
		return err
	}

	user, err := h.user(ctx, squirrel.Eq{metadata.PrimaryKey: id})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": user, "token": token})
}

// Logout handles POST /logout and revokes the token used for the request.
func (h *Handler) Logout(c *fiber.Ctx) error {
	p := GetPrincipal(c)
	if p == nil {
		return engine.UnauthorizedError()
	}
	if err := h.tokens.Revoke(c.Context(), p.TokenID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": MsgLoggedOut})
}

// VerifyEmail handles GET /email/verify/:id/:hash. The signature has already
// been checked by the Signed middleware.
func (h *Handler) VerifyEmail(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return engine.NewAppError("USER_NOT_FOUND", fiber.StatusNotFound, MsgUserNotFound)
	}

	ctx := c.Context()
	row, err := store.SelectOne(ctx, h.store.DB, h.store.Builder().
		Select("email", "email_verified_at").From(h.users.Table).
		Where(squirrel.Eq{metadata.PrimaryKey: id}))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.NewAppError("USER_NOT_FOUND", fiber.StatusNotFound, MsgUserNotFound)
		}
		return fmt.Errorf("find user: %w", err)
	}

	email, _ := row["email"].(string)
	if !MatchEmailHash(c.Params("hash"), email) {
		return engine.NewAppError("INVALID_LINK", fiber.StatusUnprocessableEntity, MsgInvalidLink)
	}
	if row["email_verified_at"] != nil {
		return c.JSON(fiber.Map{"message": MsgAlreadyVerified})
	}

	now := h.now().UTC()
	if _, err := store.Run(ctx, h.store.DB, h.store.Builder().Update(h.users.Table).
		Set("email_verified_at", now).
		Set("updated_at", now).
		Where(squirrel.Eq{metadata.PrimaryKey: id})); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	h.opts.Logger.Info("email verified", zap.Int64("user_id", id))
	return c.JSON(fiber.Map{"message": MsgVerified})
}

// VerificationURL returns the signed verification link of a user.
func (h *Handler) VerificationURL(id int64, email string) string {
	path := fmt.Sprintf("%s/email/verify/%d/%s", h.opts.Prefix, id, EmailHash(email))
	return h.signer.Sign(path, h.now().Add(h.opts.VerifyTTL))
}

func (h *Handler) emailTaken(ctx context.Context, email string) (bool, error) {
	n, err := store.Count(ctx, h.store.DB, h.store.Builder().
		Select("COUNT(*)").From(h.users.Table).
		Where(squirrel.Eq{"email": email}))
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

func (h *Handler) user(ctx context.Context, where squirrel.Sqlizer) (map[string]any, error) {
	row, err := store.SelectOne(ctx, h.store.DB, h.store.Builder().
		Select("*").From(h.users.Table).Where(where))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	h.loader.Present(h.users, []map[string]any{row})
	return row, nil
}

// RegisterAuthRoutes mounts the auth routes on router. authn authenticates
// logout; throttle guards the verification route.
func RegisterAuthRoutes(router fiber.Router, h *Handler, authn, throttle fiber.Handler) {
	router.Post("/register", h.Register)
	router.Post("/login", h.Login)
	router.Post("/logout", authn, h.Logout)
	router.Get("/email/verify/:id/:hash", throttle, Signed(h.signer, h.now), h.VerifyEmail)
}
