package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"colorbet/internal/account"
	"colorbet/internal/admin"
	"colorbet/internal/api"
	"colorbet/internal/auth"
	"colorbet/internal/config"
	"colorbet/internal/database"
	"colorbet/internal/game"
	"colorbet/internal/live"
	"colorbet/internal/ratelimit"
	"colorbet/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/colorbet.yaml", "path to the YAML config file")
	devToken := flag.String("dev-token", "", "print a signed token for this account id and exit")
	devRole := flag.String("dev-role", string(account.RoleUser), "role claim for -dev-token")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("Error loading .env file", err)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if *devToken != "" {
		if err := printToken(cfg.Auth, *devToken, account.Role(*devRole)); err != nil {
			log.Error("sign token", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func printToken(cfg config.AuthConfig, id string, role account.Role) error {
	issuer, err := auth.NewIssuer([]byte(cfg.Secret), cfg.Issuer)
	if err != nil {
		return err
	}
	raw, err := issuer.Sign(account.Identity{ID: id, Username: id, Role: role}, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormLevel := logger.Warn
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
		gormLevel = logger.Error
	}

	db, err := database.Open(ctx, cfg.Database, gormLevel)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", "err", err)
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	walletRepo := wallet.NewWalletRepositoryImpl(db)
	wallets := wallet.NewService(db, walletRepo, log.With("component", "wallet"))
	accounts := account.NewRepositoryImpl(db)
	adminSvc := admin.NewService(db, log.With("component", "admin"))

	hub := live.NewHub(0, log.With("component", "live"))
	defer hub.Close()

	engine := game.NewEngine(db, game.NewRepositoryImpl(), walletRepo, adminSvc, game.Options{
		StartDelay: cfg.Game.StartDelay,
		Notifier:   hub,
		Logger:     log.With("component", "game"),
	})

	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rl, err := ratelimit.NewRedisLimiter(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, bets are not rate limited", "addr", cfg.Redis.Addr, "err", err)
		} else {
			defer rl.Close()
			limiter = rl
		}
	}

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.Leeway)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(api.Deps{
		DB:       db,
		Engine:   engine,
		Wallets:  wallets,
		Admin:    adminSvc,
		Accounts: accounts,
		Verifier: verifier,
		Hub:      hub,
		Limiter:  limiter,
		Game:     cfg.Game,
		Uploads:  cfg.Uploads,
		Logger:   log.With("component", "api"),
	})
	if err != nil {
		return err
	}

	var ticker *game.Ticker
	if !cfg.Game.DisableTicker {
		ticker = game.NewTicker(cfg.Game.TickInterval, engine, log.With("component", "ticker"))
		if err := ticker.Start(ctx); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if ticker != nil {
		if err := ticker.Stop(shutdownCtx); err != nil {
			log.Warn("stop ticker", "err", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}
