package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"motorent/internal/auth"
	"motorent/internal/db"
	apperr "motorent/internal/errors"
	"motorent/internal/logger"
	"motorent/internal/repository"
	"motorent/internal/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, conn, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(cmd.Context(), conn); err != nil {
			return err
		}
		logger.L.Info("schema applied")
		return nil
	},
}

var adminFlags struct {
	name     string
	email    string
	password string
}

// Admins cannot self-register, so the first one is seeded from the CLI.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a verified administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conn, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(cmd.Context(), conn); err != nil {
			return err
		}
		tx := repository.NewTransactor(conn, cfg.DBTimeout)
		users := service.NewUserService(tx, service.NewStores(), nil, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), nil)

		u, err := users.CreateAdmin(cmd.Context(), adminFlags.name, adminFlags.email, adminFlags.password)
		if err != nil {
			var he *apperr.HTTPError
			if errors.As(err, &he) {
				return fmt.Errorf("create admin: %s", he.Message)
			}
			return err
		}
		logger.L.Info("admin created", "id", u.ID, "email", u.Email)
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.name, "name", "Administrator", "display name")
	f.StringVar(&adminFlags.email, "email", "", "login email")
	f.StringVar(&adminFlags.password, "password", "", "login password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}
