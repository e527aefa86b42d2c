package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "deskctl",
		Short:         "Operator tooling for the support desk API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		migrateCmd(),
		createAdminCmd(),
		listUsersCmd(),
		issueTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// env is the subset of the API process each command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
	users  repository.UserRepository
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		pg:     pg,
		users:  repository.NewUserRepository(pg.PoolHandle()),
	}, nil
}

func (e *env) Close() {
	e.pg.Close()
	_ = e.logger.Sync()
}

func (e *env) authService() (*service.AuthService, error) {
	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{
		AccessSecret:  e.cfg.Auth.AccessSecret,
		RefreshSecret: e.cfg.Auth.RefreshSecret,
		AccessTTL:     e.cfg.Auth.AccessTokenTTL,
		RefreshTTL:    e.cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(e.cfg.Auth, service.AuthDependencies{
		UserRepo: e.users,
		Tokens:   tokens,
		Logger:   e.logger,
	}), nil
}
