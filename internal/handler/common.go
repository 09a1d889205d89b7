package handler

import (
    "context"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
)

// requestCtx bounds every handler's database work to five seconds.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// currentUser returns the authenticated user's id and role as stored by the
// auth middleware.
func currentUser(c echo.Context) (uint64, string) {
    uid, _ := c.Get("user_id").(uint64)
    role, _ := c.Get("role").(string)
    return uid, role
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// pagination reads page/limit query params with sane bounds.  Returns the
// limit and offset to feed a repository filter.
func pagination(c echo.Context) (limit, offset, page int) {
    page = queryInt(c, "page", 1)
    if page < 1 {
        page = 1
    }
    limit = queryInt(c, "limit", 20)
    if limit < 1 {
        limit = 20
    }
    if limit > 100 {
        limit = 100
    }
    return limit, (page - 1) * limit, page
}

func queryInt(c echo.Context, name string, def int) int {
    v := c.QueryParam(name)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

// listMeta is the standard pagination block returned next to list payloads.
type listMeta struct {
    Page  int `json:"page"`
    Limit int `json:"limit"`
    Total int `json:"total"`
    Pages int `json:"pages"`
}

func newListMeta(page, limit, total int) listMeta {
    pages := total / limit
    if total%limit != 0 {
        pages++
    }
    return listMeta{Page: page, Limit: limit, Total: total, Pages: pages}
}
