// Package router wires handlers and middleware onto the Echo instance.
package router

import (
    "github.com/labstack/echo/v4"

    "github.com/atlasinsure/claims-api/internal/handler"
    "github.com/atlasinsure/claims-api/internal/middleware"
    "github.com/atlasinsure/claims-api/internal/model"
    "github.com/atlasinsure/claims-api/internal/repository"
)

// Handlers collects every handler the API mounts.
type Handlers struct {
    Auth      *handler.AuthHandler
    Users     *handler.UserHandler
    Policies  *handler.PolicyHandler
    Claims    *handler.ClaimHandler
    Dashboard *handler.DashboardHandler
    Health    *handler.HealthHandler
}

// Register mounts all routes.  Unauthenticated endpoints are the health
// check and the /v1/auth group; everything else sits behind JWTAuth, with
// per-route role restrictions on top.
func Register(e *echo.Echo, h Handlers, jwtSecret string, users *repository.UserRepo) {
    e.GET("/healthz", h.Health.Health)

    auth := e.Group("/v1/auth")
    auth.POST("/register", h.Auth.Register)
    auth.POST("/login", h.Auth.Login)
    auth.POST("/refresh", h.Auth.Refresh)

    agentOrAdmin := middleware.RequireRole(model.RoleAgent, model.RoleAdmin)
    adminOnly := middleware.RequireRole(model.RoleAdmin)

    v1 := e.Group("/v1")
    v1.Use(middleware.JWTAuth(jwtSecret, users))

    // Logout sits behind the gate so the no-token variant can fall back to
    // revoking every session of the authenticated user.
    v1.POST("/auth/logout", h.Auth.Logout)

    v1.GET("/me", h.Auth.Me)

    // Users. Listing, provisioning and lifecycle are admin operations;
    // single reads and profile edits also serve the user themselves.
    v1.GET("/users", h.Users.List, adminOnly)
    v1.POST("/users", h.Users.Create, adminOnly)
    v1.GET("/users/agents/list", h.Users.Agents)
    v1.GET("/users/:id", h.Users.Get)
    v1.PUT("/users/:id", h.Users.Update)
    v1.PUT("/users/:id/preferences", h.Users.UpdatePreferences)
    v1.DELETE("/users/:id", h.Users.Delete, adminOnly)
    v1.PATCH("/users/:id/deactivate", h.Users.Deactivate, adminOnly)
    v1.PATCH("/users/:id/reactivate", h.Users.Reactivate, adminOnly)

    // Policies. Creation is an agent/admin operation; everything else is
    // scoped per role inside the handlers, so the owning customer can read,
    // update and renew their own policy.
    v1.GET("/policies", h.Policies.List)
    v1.POST("/policies", h.Policies.Create, agentOrAdmin)
    v1.GET("/policies/:id", h.Policies.Get)
    v1.PUT("/policies/:id", h.Policies.Update)
    v1.DELETE("/policies/:id", h.Policies.Cancel, agentOrAdmin)
    v1.POST("/policies/:id/renew", h.Policies.Renew)
    v1.GET("/policies/:id/analytics", h.Policies.Analytics)
    v1.POST("/policies/:id/notes", h.Policies.AddNote)
    v1.GET("/policies/:id/notes", h.Policies.ListNotes)
    v1.POST("/policies/:id/documents", h.Policies.AddDocument, agentOrAdmin)
    v1.GET("/policies/:id/documents", h.Policies.ListDocuments)

    // Claims. Anyone in scope can file and read; workflow transitions are
    // agent/admin operations.
    v1.GET("/claims", h.Claims.List)
    v1.POST("/claims", h.Claims.Create)
    v1.GET("/claims/analytics/overview", h.Claims.Analytics)
    v1.GET("/claims/:id", h.Claims.Get)
    v1.PUT("/claims/:id", h.Claims.Update)
    v1.DELETE("/claims/:id", h.Claims.Delete, agentOrAdmin)
    v1.PATCH("/claims/:id/status", h.Claims.SetStatus, agentOrAdmin)
    v1.PATCH("/claims/:id/assign", h.Claims.Assign, agentOrAdmin)
    v1.PATCH("/claims/:id/approve", h.Claims.Approve, agentOrAdmin)
    v1.PATCH("/claims/:id/deny", h.Claims.Deny, agentOrAdmin)
    v1.PATCH("/claims/:id/close", h.Claims.Close, agentOrAdmin)
    v1.POST("/claims/:id/notes", h.Claims.AddNote)
    v1.GET("/claims/:id/notes", h.Claims.ListNotes)
    v1.GET("/claims/:id/timeline", h.Claims.Timeline)

    // Dashboard.
    v1.GET("/dashboard/overview", h.Dashboard.Overview)
    v1.GET("/dashboard/stats", h.Dashboard.Stats)
    v1.GET("/dashboard/activity", h.Dashboard.Activity)
    v1.GET("/dashboard/notifications", h.Dashboard.Notifications)
}
