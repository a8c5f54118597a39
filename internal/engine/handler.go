package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"task-manager-api/internal/metadata"
	"task-manager-api/internal/store"
)

// Options configures the resource handler.
type Options struct {
	DefaultPerPage int
	HashPassword   func(plain string) (string, error)
	Logger         *zap.Logger
}

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	schema   *metadata.Schema
	loader   *Loader
	opts     Options
	now      func() time.Time
}

func NewHandler(s *store.Store, reg *metadata.Registry, schema *metadata.Schema, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		store:    s,
		registry: reg,
		schema:   schema,
		loader:   NewLoader(s, reg, schema),
		opts:     opts,
		now:      time.Now,
	}
}

// List handles GET /api/:model
func (h *Handler) List(c *fiber.Ctx) error {
	res, err := h.resolve(c)
	if err != nil {
		return err
	}

	plan, err := BuildQueryPlan(h.schema, h.registry, res, h.listParams(c))
	if err != nil {
		return err
	}

	if err := Authorize(getPrincipal(c), VerbList, res, Target{Filter: plan.Filter}); err != nil {
		return err
	}

	ctx := c.Context()
	b := h.store.Builder()
	rows, err := store.Select(ctx, h.store.DB, BuildSelectSQL(b, plan))
	if err != nil {
		return fmt.Errorf("list %s: %w", res.Name, err)
	}
	h.loader.Present(res, rows)

	if err := h.loader.LoadIncludes(ctx, h.store.DB, res, rows, plan.With); err != nil {
		return fmt.Errorf("load includes: %w", err)
	}

	if plan.Window.Unbounded() {
		return c.JSON(rows)
	}

	total, err := store.Count(ctx, h.store.DB, BuildCountSQL(b, plan))
	if err != nil {
		return fmt.Errorf("count %s: %w", res.Name, err)
	}
	return c.JSON(NewPage(rows, total, plan.Window, c.BaseURL()+c.Path()))
}

// Show handles GET /api/:model/:id
func (h *Handler) Show(c *fiber.Ctx) error {
	res, err := h.resolve(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	sel, with, appErr := validateSelection(h.schema, h.registry, res,
		splitList(c.Query("columns")), splitList(c.Query("with")))
	if appErr != nil {
		return appErr
	}

	ctx := c.Context()
	target, err := h.target(ctx, h.store.DB, res, []int64{id}, true)
	if err != nil {
		return err
	}
	if err := Authorize(getPrincipal(c), VerbShow, res, target); err != nil {
		return err
	}

	row, err := h.fetch(ctx, h.store.DB, res, sel, id)
	if err != nil {
		return err
	}

	rows := []map[string]any{row}
	if err := h.loader.LoadIncludes(ctx, h.store.DB, res, rows, with); err != nil {
		return fmt.Errorf("load includes: %w", err)
	}
	return c.JSON(rows[0])
}

// Create handles POST /api/:model
func (h *Handler) Create(c *fiber.Ctx) error {
	res, err := h.resolve(c)
	if err != nil {
		return err
	}

	p := getPrincipal(c)
	if err := Authorize(p, VerbCreate, res, Target{}); err != nil {
		return err
	}

	body, err := ParseBody(c)
	if err != nil {
		return err
	}

	values, fieldErrs := rulesFor(res).Validate(body, h.now())
	if len(fieldErrs) > 0 {
		return ValidationError(fieldErrs)
	}

	now := h.now().UTC()
	values[res.OwnerKey] = p.ID
	values["created_at"] = now
	values["updated_at"] = now

	ctx := c.Context()
	id, err := store.InsertReturningID(ctx, h.store.DB, BuildInsertSQL(h.store.Builder(), res, values))
	if err != nil {
		return fmt.Errorf("create %s: %w", res.Name, store.MapError(h.store.Dialect, err))
	}

	row, err := h.fetch(ctx, h.store.DB, res, nil, id)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(row)
}

// Update handles PUT /api/:model/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	res, err := h.resolve(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	ctx := c.Context()
	target, err := h.target(ctx, h.store.DB, res, []int64{id}, true)
	if err != nil {
		return err
	}
	if err := Authorize(getPrincipal(c), VerbUpdate, res, target); err != nil {
		return err
	}
	if res.OwnerKey == "" {
		if _, err := h.fetch(ctx, h.store.DB, res, Selection{metadata.PrimaryKey}, id); err != nil {
			return err
		}
	}

	body, err := ParseBody(c)
	if err != nil {
		return err
	}

	values, fieldErrs := rulesFor(res).Validate(body, h.now())
	if res.Kind == metadata.KindUser {
		if err := h.prepareUser(ctx, id, values, fieldErrs); err != nil {
			return err
		}
	}
	if len(fieldErrs) > 0 {
		return ValidationError(fieldErrs)
	}
	values["updated_at"] = h.now().UTC()

	if _, err := store.Run(ctx, h.store.DB, BuildUpdateSQL(h.store.Builder(), res, id, values)); err != nil {
		err = store.MapError(h.store.Dialect, err)
		if errors.Is(err, store.ErrUniqueViolation) {
			return ValidationError(map[string][]string{"email": {"The email has already been taken."}})
		}
		return fmt.Errorf("update %s/%d: %w", res.Name, id, err)
	}

	row, err := h.fetch(ctx, h.store.DB, res, nil, id)
	if err != nil {
		return err
	}
	return c.JSON(row)
}

// Delete handles DELETE /api/:model (body {"ids": "1,2,3"}) and
// DELETE /api/:model/:id. The ownership check and the delete share one
// transaction; a single foreign row denies the whole batch.
func (h *Handler) Delete(c *fiber.Ctx) error {
	res, err := h.resolve(c)
	if err != nil {
		return err
	}
	ids, err := deleteIDs(c)
	if err != nil {
		return err
	}

	ctx := c.Context()
	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	target, err := h.target(ctx, tx, res, ids, false)
	if err != nil {
		return err
	}
	if err := Authorize(getPrincipal(c), VerbDelete, res, target); err != nil {
		return err
	}

	if _, err := store.Run(ctx, tx, BuildDeleteSQL(h.store.Builder(), res, ids)); err != nil {
		return fmt.Errorf("delete %s: %w", res.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	h.opts.Logger.Info("resources deleted",
		zap.String("model", res.Name), zap.Int64s("ids", ids), zap.Int64("by", getPrincipal(c).ID))
	return c.JSON(fiber.Map{"message": MsgOK})
}

// MethodNotAllowed answers verbs the resource routes do not serve.
func (h *Handler) MethodNotAllowed(c *fiber.Ctx) error {
	return MethodNotAllowedError()
}

func (h *Handler) resolve(c *fiber.Ctx) (*metadata.Descriptor, error) {
	d, err := h.registry.Resolve(c.Params("model"))
	if err != nil {
		return nil, UnknownModelError()
	}
	return d, nil
}

func (h *Handler) listParams(c *fiber.Ctx) ListParams {
	p := ListParams{
		Columns: splitList(c.Query("columns")),
		With:    splitList(c.Query("with")),
		Filter:  c.Query("filter"),
		Search:  c.Query("search"),
		Page:    1,
		PerPage: h.opts.DefaultPerPage,
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if raw := c.Query("per_page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			p.PerPage = v
		}
	}
	return p
}

// target loads what Authorize needs about the addressed rows. For owned
// resources it reads every row's owner; requireAll turns a missing row into
// a 404.
func (h *Handler) target(ctx context.Context, q store.Querier, d *metadata.Descriptor, ids []int64, requireAll bool) (Target, error) {
	t := Target{IDs: ids}
	if d.OwnerKey == "" {
		return t, nil
	}

	rows, err := store.Select(ctx, q, BuildOwnersSQL(h.store.Builder(), d, ids))
	if err != nil {
		return t, fmt.Errorf("load owners of %s: %w", d.Name, err)
	}
	if requireAll && len(rows) < len(ids) {
		return t, NotFoundError()
	}
	for _, row := range rows {
		owner, ok := toInt64(row[d.OwnerKey])
		if !ok {
			return t, fmt.Errorf("owner of %s/%v is %T", d.Name, row[metadata.PrimaryKey], row[d.OwnerKey])
		}
		t.Owners = append(t.Owners, owner)
	}
	return t, nil
}

func (h *Handler) fetch(ctx context.Context, q store.Querier, d *metadata.Descriptor, sel Selection, id int64) (map[string]any, error) {
	row, err := store.SelectOne(ctx, q, BuildFetchSQL(h.store.Builder(), d, sel, id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError()
		}
		return nil, fmt.Errorf("get %s/%d: %w", d.Name, id, err)
	}
	h.loader.Present(d, []map[string]any{row})
	return row, nil
}

// prepareUser checks email uniqueness (ignoring the user itself) and hashes
// the new password.
func (h *Handler) prepareUser(ctx context.Context, id int64, values map[string]any, fieldErrs map[string][]string) error {
	if email, ok := values["email"].(string); ok {
		n, err := store.Count(ctx, h.store.DB, h.store.Builder().
			Select("COUNT(*)").From("users").
			Where(squirrel.Eq{"email": email}).
			Where(squirrel.NotEq{metadata.PrimaryKey: id}))
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if n > 0 {
			fieldErrs["email"] = append(fieldErrs["email"], "The email has already been taken.")
		}
	}
	if plain, ok := values["password"].(string); ok {
		if h.opts.HashPassword == nil {
			return errors.New("no password hasher configured")
		}
		hash, err := h.opts.HashPassword(plain)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		values["password"] = hash
	}
	return nil
}

func rulesFor(d *metadata.Descriptor) *RuleSet {
	if d.Kind == metadata.KindUser {
		return RegisterRules
	}
	return TaskRules
}

func getPrincipal(c *fiber.Ctx) *metadata.Principal {
	p, _ := c.Locals(metadata.LocalsKey).(*metadata.Principal)
	return p
}

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, NotFoundError()
	}
	return id, nil
}

// ParseBody decodes a JSON object body. An empty body is an empty object.
func ParseBody(c *fiber.Ctx) (map[string]any, error) {
	body := map[string]any{}
	if len(c.Body()) == 0 {
		return body, nil
	}
	if err := c.BodyParser(&body); err != nil {
		return nil, BadRequestError()
	}
	return body, nil
}

// deleteIDs reads the ids to delete from the path or from the body's "ids"
// field, which may be "1,2,3", a number or a JSON array.
func deleteIDs(c *fiber.Ctx) ([]int64, error) {
	if raw := c.Params("id"); raw != "" {
		id, err := pathID(c)
		if err != nil {
			return nil, err
		}
		return []int64{id}, nil
	}

	var body struct {
		IDs json.RawMessage `json:"ids"`
	}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return nil, BadRequestError()
		}
	}
	if raw := c.Query("ids"); len(body.IDs) == 0 && raw != "" {
		body.IDs, _ = json.Marshal(raw)
	}
	if len(body.IDs) == 0 || string(body.IDs) == "null" || string(body.IDs) == `""` {
		return nil, ValidationError(map[string][]string{"ids": {"The ids field is required."}})
	}

	var tokens []string
	var s string
	var list []json.Number
	var n json.Number
	switch {
	case json.Unmarshal(body.IDs, &s) == nil:
		tokens = strings.Split(s, ",")
	case json.Unmarshal(body.IDs, &n) == nil:
		tokens = []string{n.String()}
	case json.Unmarshal(body.IDs, &list) == nil:
		for _, v := range list {
			tokens = append(tokens, v.String())
		}
	}

	ids := make([]int64, 0, len(tokens))
	for _, tok := range tokens {
		id, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
		if err != nil || id <= 0 {
			return nil, ValidationError(map[string][]string{"ids": {"The ids field must be a comma separated list of ids."}})
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ValidationError(map[string][]string{"ids": {"The ids field is required."}})
	}
	return ids, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
