package handler

import (
    "context"
    "database/sql"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/config"
    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/repository"
    "github.com/atlasinsure/claims-api/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  *repository.UserRepo
    Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type registerReq struct {
    Email     string        `json:"email"`
    Password  string        `json:"password"`
    FirstName string        `json:"first_name"`
    LastName  string        `json:"last_name"`
    Phone     string        `json:"phone"`
    Address   model.Address `json:"address"`
}

type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type authResp struct {
    User    model.User `json:"user"`
    Access  tokenPart  `json:"access"`
    Refresh tokenPart  `json:"refresh"`
}

// Register creates a customer account and returns a token pair immediately.
// Self-registration always yields the customer role; agents and admins are
// provisioned by an admin through the user endpoints.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    var fieldErrs []string
    if req.Email == "" {
        fieldErrs = append(fieldErrs, "email is required")
    }
    if len(req.Password) < 8 {
        fieldErrs = append(fieldErrs, "password must be at least 8 characters")
    }
    if strings.TrimSpace(req.FirstName) == "" {
        fieldErrs = append(fieldErrs, "first_name is required")
    }
    if strings.TrimSpace(req.LastName) == "" {
        fieldErrs = append(fieldErrs, "last_name is required")
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
        Role:      model.RoleCustomer,
        IsActive:  true,
        Address:   req.Address,
    }
    uid, err := h.Users.Create(ctx, &u, req.Password, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return fail(c, http.StatusConflict, "email already registered")
        }
        return fail(c, http.StatusInternalServerError, "could not create account")
    }
    u.ID = uid
    u.CreatedAt = time.Now().UTC()

    return h.issuePair(c, ctx, http.StatusCreated, u)
}

// Login verifies credentials and returns a fresh token pair.  A deactivated
// account cannot log in.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return fail(c, http.StatusBadRequest, "invalid request body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return fail(c, http.StatusBadRequest, "email and password are required")
    }

    ctx, cancel := requestCtx(c)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return fail(c, http.StatusUnauthorized, "invalid credentials")
        }
        return fail(c, http.StatusInternalServerError, "login failed")
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return fail(c, http.StatusUnauthorized, "invalid credentials")
    }
    if !u.IsActive {
        return fail(c, http.StatusForbidden, "account is deactivated")
    }

    now := time.Now().UTC()
    _ = h.Users.TouchLastLogin(ctx, u.ID, now)
    u.LastLogin = &now

    return h.issuePair(c, ctx, http.StatusOK, u)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return fail(c, http.StatusBadRequest, "refresh_token is required")
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := requestCtx(c)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "invalid refresh token")
    }
    _ = h.Tokens.RevokeByHash(ctx, hash)

    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "invalid refresh token")
    }
    if !u.IsActive {
        return fail(c, http.StatusForbidden, "account is deactivated")
    }

    return h.issuePair(c, ctx, http.StatusOK, u)
}

// Logout revokes the presented refresh token, or every session of the
// authenticated user when no token is given.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    _ = c.Bind(&req)
    raw := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := requestCtx(c)
    defer cancel()

    if raw != "" {
        hash := utils.HashRefreshRaw(raw)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return fail(c, http.StatusUnauthorized, "invalid refresh token")
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return fail(c, http.StatusInternalServerError, "logout failed")
        }
        return okMsg(c, http.StatusOK, nil, "logged out")
    }

    uid, _ := currentUser(c)
    if uid == 0 {
        return fail(c, http.StatusBadRequest, "provide refresh_token or an access token")
    }
    if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
        return fail(c, http.StatusInternalServerError, "logout failed")
    }
    return okMsg(c, http.StatusOK, nil, "logged out of all sessions")
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
    uid, _ := currentUser(c)

    ctx, cancel := requestCtx(c)
    defer cancel()

    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        return fail(c, http.StatusUnauthorized, "invalid token")
    }
    return ok(c, http.StatusOK, u)
}

func (h *AuthHandler) issuePair(c echo.Context, ctx context.Context, status int, u model.User) error {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not issue access token")
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return fail(c, http.StatusInternalServerError, "could not issue refresh token")
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return fail(c, http.StatusInternalServerError, "could not persist refresh token")
    }
    return ok(c, status, authResp{
        User:    u,
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
        Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
    })
}
