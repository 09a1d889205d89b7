package handler

import (
    "database/sql"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// HealthHandler reports liveness and database reachability.
type HealthHandler struct {
    DB *sql.DB
}

func NewHealthHandler(db *sql.DB) *HealthHandler { return &HealthHandler{DB: db} }

func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := requestCtx(c)
    defer cancel()

    dbStatus := "up"
    if err := h.DB.PingContext(ctx); err != nil {
        dbStatus = "down"
    }
    status := http.StatusOK
    if dbStatus == "down" {
        status = http.StatusServiceUnavailable
    }
    return c.JSON(status, echo.Map{
        "status":   "ok",
        "database": dbStatus,
        "time":     time.Now().UTC().Format(time.RFC3339),
    })
}
