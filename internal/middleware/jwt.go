package middleware

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/repository"
)

// JWTAuth validates a Bearer access token, loads the account behind it and
// injects "user_id" (uint64) and "role" (string) into the request context.
// The role comes from the database row, not the token, so a role change
// takes effect without waiting for the token to expire.  A deactivated
// account is rejected with 403 even when its token is still valid.
func JWTAuth(secret string, users *repository.UserRepo) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "success": false, "message": "missing bearer token",
                })
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "success": false, "message": "invalid token",
                })
            }
            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "success": false, "message": "invalid claims",
                })
            }
            sub, ok := claims["sub"].(float64)
            if !ok || sub <= 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "success": false, "message": "invalid claims",
                })
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()
            u, err := users.GetByID(ctx, uint64(sub))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{
                    "success": false, "message": "invalid token",
                })
            }
            if !u.IsActive {
                return c.JSON(http.StatusForbidden, echo.Map{
                    "success": false, "message": "account is deactivated",
                })
            }

            c.Set("user_id", u.ID)
            c.Set("role", u.Role)
            return next(c)
        }
    }
}
