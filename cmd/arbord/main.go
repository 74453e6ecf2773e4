package main

import (
  "context"
  "errors"
  "fmt"
  "net/http"
  "os"
  "os/signal"
  "syscall"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"

  "github.com/yungbote/arbor/closure"
  "github.com/yungbote/arbor/internal/config"
  "github.com/yungbote/arbor/internal/db"
  "github.com/yungbote/arbor/internal/handlers"
  "github.com/yungbote/arbor/internal/logger"
  "github.com/yungbote/arbor/internal/server"
  "github.com/yungbote/arbor/internal/types"
  "github.com/yungbote/arbor/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Config
  log.Info("Loading configuration from main...")
  cfgPath := utils.GetEnv("ARBORD_CONFIG", "", log)
  cfg, err := config.Load(cfgPath, log)
  if err != nil {
    log.Fatal("Could not load configuration", "error", err)
  }

  // Postgres
  postgresService, err := db.NewPostgresService(cfg.Postgres, log)
  if err != nil {
    log.Fatal("Postgres init failed", "error", err)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Fatal("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Closure tree repo
  log.Info("Setting up category tree repo from main...")
  treeCfg := closure.DefaultConfig("category", "category_hierarchy")
  if cfg.Tree.OrderColumn != "" {
    treeCfg.Order = closure.OrderByNumericColumn(cfg.Tree.OrderColumn)
  }
  if cfg.Tree.LockDisabled {
    treeCfg.Lock = closure.LockDisabled()
  }
  categoryRepo := closure.NewRepository[types.Category, types.CategoryHierarchy, uuid.UUID, *types.Category, *types.CategoryHierarchy](thePG, treeCfg, log.SugaredLogger)

  // Handlers + router
  treeHandler := handlers.NewTreeHandler(thePG, categoryRepo, log)
  router := server.NewRouter(server.RouterConfig{TreeHandler: treeHandler})

  srv := &http.Server{Addr: cfg.Addr, Handler: router}

  ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
  defer stop()

  g, gctx := errgroup.WithContext(ctx)
  g.Go(func() error {
    log.Info("Starting arbord", "addr", cfg.Addr)
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
      return err
    }
    return nil
  })
  g.Go(func() error {
    <-gctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    return srv.Shutdown(shutdownCtx)
  })

  if err := g.Wait(); err != nil {
    log.Error("Server exited with error", "error", err)
    os.Exit(1)
  }
  log.Info("Server stopped")
}
