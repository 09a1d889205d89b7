package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/repository"
)

// UserHandler bundles dependencies for the user management endpoints.
type UserHandler struct {
    Users      *repository.UserRepo
    BcryptCost int
}

func NewUserHandler(u *repository.UserRepo, bcryptCost int) *UserHandler {
    return &UserHandler{Users: u, BcryptCost: bcryptCost}
}

// List returns users with optional role and search filters.  Admin only.
func (h *UserHandler) List(c echo.Context) error {
    limit, offset, page := pagination(c)
    f := repository.UserListFilter{
        Role:   c.QueryParam("role"),
        Search: strings.TrimSpace(c.QueryParam("search")),
        Limit:  limit,
        Offset: offset,
    }
    if f.Role != "" && !model.ValidRole(f.Role) {
        return fail(c, http.StatusBadRequest, "invalid role filter")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    users, total, err := h.Users.List(ctx, f)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not list users")
    }
    return ok(c, http.StatusOK, echo.Map{
        "users":      users,
        "pagination": newListMeta(page, limit, total),
    })
}

// Agents returns the active agents.  Available to any authenticated user so
// customers can pick an agent.
func (h *UserHandler) Agents(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    agents, err := h.Users.ListAgents(ctx)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not list agents")
    }
    return ok(c, http.StatusOK, agents)
}

// Get returns a single user.  Agents and admins may fetch anyone;
// customers only themselves.
func (h *UserHandler) Get(c echo.Context) error {
    id, okID := pathID(c)
    if !okID {
        return fail(c, http.StatusBadRequest, "invalid user id")
    }
    uid, role := currentUser(c)
    if role == model.RoleCustomer && id != uid {
        return fail(c, http.StatusForbidden, "access denied")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    u, err := h.Users.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusNotFound, "user not found")
        }
        return fail(c, http.StatusInternalServerError, "could not load user")
    }
    return ok(c, http.StatusOK, u)
}

type userCreateReq struct {
    Email     string        `json:"email"`
    Password  string        `json:"password"`
    FirstName string        `json:"first_name"`
    LastName  string        `json:"last_name"`
    Phone     string        `json:"phone"`
    Role      string        `json:"role"`
    Address   model.Address `json:"address"`
}

// Create provisions an account with an explicit role.  Admin only; this is
// how agent and admin accounts come to exist.
func (h *UserHandler) Create(c echo.Context) error {
    var req userCreateReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    var fieldErrs []string
    if strings.TrimSpace(req.Email) == "" {
        fieldErrs = append(fieldErrs, "email is required")
    }
    if len(req.Password) < 8 {
        fieldErrs = append(fieldErrs, "password must be at least 8 characters")
    }
    if !model.ValidRole(req.Role) {
        fieldErrs = append(fieldErrs, "role must be customer, agent or admin")
    }
    if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
        fieldErrs = append(fieldErrs, "first_name and last_name are required")
    }
    if len(fieldErrs) > 0 {
        return failFields(c, http.StatusBadRequest, "validation failed", fieldErrs)
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    u := model.User{
        Email:     req.Email,
        FirstName: strings.TrimSpace(req.FirstName),
        LastName:  strings.TrimSpace(req.LastName),
        Phone:     strings.TrimSpace(req.Phone),
        Role:      req.Role,
        IsActive:  true,
        Address:   req.Address,
    }
    id, err := h.Users.Create(ctx, &u, req.Password, h.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return fail(c, http.StatusConflict, "email already registered")
        }
        return fail(c, http.StatusInternalServerError, "could not create user")
    }
    u.ID = id
    return okMsg(c, http.StatusCreated, u, "user created")
}

type userUpdateReq struct {
    FirstName *string        `json:"first_name"`
    LastName  *string        `json:"last_name"`
    Phone     *string        `json:"phone"`
    Address   *model.Address `json:"address"`
    Role      *string        `json:"role"`
    IsActive  *bool          `json:"is_active"`
}

// Update edits a profile.  Users may edit their own name, phone and
// address; agents may edit any profile; role and activation changes are
// admin only.
func (h *UserHandler) Update(c echo.Context) error {
    id, okID := pathID(c)
    if !okID {
        return fail(c, http.StatusBadRequest, "invalid user id")
    }
    uid, role := currentUser(c)
    if role == model.RoleCustomer && id != uid {
        return fail(c, http.StatusForbidden, "access denied")
    }

    var req userUpdateReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    if role != model.RoleAdmin && (req.Role != nil || req.IsActive != nil) {
        return fail(c, http.StatusForbidden, "role and activation changes require admin")
    }
    if req.Role != nil && !model.ValidRole(*req.Role) {
        return fail(c, http.StatusBadRequest, "invalid role")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    upd := repository.UserUpdate{
        FirstName: req.FirstName,
        LastName:  req.LastName,
        Phone:     req.Phone,
        Address:   req.Address,
        Role:      req.Role,
        IsActive:  req.IsActive,
    }
    if err := h.Users.Update(ctx, id, upd); err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusNotFound, "user not found")
        }
        return fail(c, http.StatusInternalServerError, "could not update user")
    }
    u, err := h.Users.GetByID(ctx, id)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not load user")
    }
    return okMsg(c, http.StatusOK, u, "user updated")
}

// UpdatePreferences replaces a user's preferences document.  Preferences
// are personal; nobody edits them for someone else, admins included.
func (h *UserHandler) UpdatePreferences(c echo.Context) error {
    id, okID := pathID(c)
    if !okID {
        return fail(c, http.StatusBadRequest, "invalid user id")
    }
    uid, _ := currentUser(c)
    if id != uid {
        return fail(c, http.StatusForbidden, "preferences can only be changed by their owner")
    }
    var prefs model.Preferences
    if err := c.Bind(&prefs); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Users.UpdatePreferences(ctx, id, prefs); err != nil {
        return fail(c, http.StatusInternalServerError, "could not update preferences")
    }
    return okMsg(c, http.StatusOK, prefs, "preferences updated")
}

// Deactivate soft-deletes an account.  The user keeps their records but can
// no longer authenticate.  Admin only.
func (h *UserHandler) Deactivate(c echo.Context) error {
    return h.setActive(c, false, "user deactivated")
}

// Reactivate restores a deactivated account.  Admin only.
func (h *UserHandler) Reactivate(c echo.Context) error {
    return h.setActive(c, true, "user reactivated")
}

func (h *UserHandler) setActive(c echo.Context, active bool, message string) error {
    id, okID := pathID(c)
    if !okID {
        return fail(c, http.StatusBadRequest, "invalid user id")
    }
    uid, _ := currentUser(c)
    if !active && id == uid {
        return fail(c, http.StatusConflict, "cannot deactivate your own account")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Users.SetActive(ctx, id, active); err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusNotFound, "user not found")
        }
        return fail(c, http.StatusInternalServerError, "could not update user")
    }
    return okMsg(c, http.StatusOK, nil, message)
}

// Delete permanently removes an account.  Admin only; deactivation is the
// normal path, hard deletion exists for data hygiene.
func (h *UserHandler) Delete(c echo.Context) error {
    id, okID := pathID(c)
    if !okID {
        return fail(c, http.StatusBadRequest, "invalid user id")
    }
    uid, _ := currentUser(c)
    if id == uid {
        return fail(c, http.StatusConflict, "cannot delete your own account")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    if err := h.Users.Delete(ctx, id); err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return fail(c, http.StatusNotFound, "user not found")
        }
        return fail(c, http.StatusInternalServerError, "could not delete user")
    }
    return okMsg(c, http.StatusOK, nil, "user deleted")
}
