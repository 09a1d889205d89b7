package main

import (
    "log"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/atlasinsure/claims-api/internal/config"
    "github.com/atlasinsure/claims-api/internal/database"
    "github.com/atlasinsure/claims-api/internal/handler"
    "github.com/atlasinsure/claims-api/internal/middleware"
    "github.com/atlasinsure/claims-api/internal/queue"
    "github.com/atlasinsure/claims-api/internal/repository"
    "github.com/atlasinsure/claims-api/internal/router"
    "github.com/atlasinsure/claims-api/internal/service"
)

func main() {
    _ = godotenv.Load() // .env is optional; real deployments set the environment directly

    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    userRepo := repository.NewUserRepo(db)
    tokenRepo := repository.NewTokenRepo(db)
    policyRepo := repository.NewPolicyRepo(db)
    claimRepo := repository.NewClaimRepo(db)

    h := router.Handlers{
        Auth:      handler.NewAuthHandler(cfg, userRepo, tokenRepo),
        Users:     handler.NewUserHandler(userRepo, cfg.BcryptCost),
        Policies:  handler.NewPolicyHandler(policyRepo, userRepo),
        Claims:    handler.NewClaimHandler(claimRepo, policyRepo, service.NewEventPublisher()),
        Dashboard: handler.NewDashboardHandler(userRepo, policyRepo, claimRepo),
        Health:    handler.NewHealthHandler(db),
    }

    e := echo.New()
    e.HideBanner = true
    e.Use(echomw.Logger())
    e.Use(echomw.Recover())

    rdb := config.NewRedisClient()
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    router.Register(e, h, cfg.JWTSecret, userRepo)

    // Background consumer appends approval events to logs/claims.log.  It
    // reconnects on its own; a missing broker never blocks the API.
    go func() {
        if err := queue.StartClaimConsumer(); err != nil {
            log.Printf("claim consumer stopped: %v", err)
        }
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
