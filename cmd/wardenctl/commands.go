package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	goWarden "github.com/MrEthical07/goWarden"
	"github.com/MrEthical07/goWarden/internal/logging"
	"github.com/MrEthical07/goWarden/password"
	"github.com/MrEthical07/goWarden/permission"
	"github.com/MrEthical07/goWarden/store/postgres"
	"github.com/MrEthical07/goWarden/trail"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) hasher() (*password.Argon2, error) {
	return password.NewArgon2(a.cfg.Password.Hasher())
}

func readSecret(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func newHashPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the Argon2id PHC hash of a password (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := readSecret(cmd, args)
			if err != nil {
				return err
			}
			h, err := a.hasher()
			if err != nil {
				return err
			}
			phc, err := h.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), phc)
			return nil
		},
	}
}

func newCatalogCmd(*app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List permission names of the built-in catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := permission.DefaultCatalog()
			var entries []permission.Permission
			switch strings.ToLower(role) {
			case "", "all":
				entries = c.All()
			case "admin":
				entries = c.Admin()
			case "basic":
				entries = c.Basic()
			default:
				return fmt.Errorf("unknown role filter %q (all|admin|basic)", role)
			}
			w := cmd.OutOrStdout()
			for _, p := range entries {
				fmt.Fprintf(w, "%s\t%s\n", p.Name(), p.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "all", "filter: all|admin|basic")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect the effective configuration"}

	var strict bool
	lint := &cobra.Command{
		Use:   "lint",
		Short: "Validate the config and report risky settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			res := a.cfg.Lint()
			w := cmd.OutOrStdout()
			for _, warn := range res {
				fmt.Fprintf(w, "%-5s %-28s %s\n", warn.Severity, warn.Code, warn.Message)
			}
			if len(res) == 0 {
				fmt.Fprintln(w, "ok")
			}
			if strict {
				return res.AsError(goWarden.LintWarn)
			}
			return res.AsError(goWarden.LintHigh)
		},
	}
	lint.Flags().BoolVar(&strict, "strict", false, "fail on warnings, not only high severity findings")
	cfgCmd.AddCommand(lint)
	return cfgCmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, s *postgres.Store) error {
				if err := s.Migrate(ctx); err != nil {
					return err
				}
				a.log.Info("schema applied")
				return nil
			})
		},
	}
}

func newSeedRolesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-roles",
		Short: "Write the Admin and Basic role claims from the built-in catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := permission.SeedClaims(permission.DefaultCatalog())
			if err != nil {
				return err
			}
			roles := make([]string, 0, len(seed))
			for r := range seed {
				roles = append(roles, r)
			}
			sort.Strings(roles)

			return a.withStore(cmd, func(ctx context.Context, s *postgres.Store) error {
				dir := s.Directory()
				for _, r := range roles {
					if err := dir.SetRoleClaims(ctx, r, seed[r]); err != nil {
						return fmt.Errorf("seed %s: %w", r, err)
					}
					a.log.Info("role seeded", zap.String("role", r), logging.Count(len(seed[r])))
				}
				return nil
			})
		},
	}
}

func newUserCmd(a *app) *cobra.Command {
	userCmd := &cobra.Command{Use: "user", Short: "Manage users"}

	var (
		email, first, last string
		roles              []string
		confirmed          bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an active user; the password is read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			plain, err := readSecret(cmd, nil)
			if err != nil {
				return err
			}
			h, err := a.hasher()
			if err != nil {
				return err
			}
			phc, err := h.Hash(plain)
			if err != nil {
				return err
			}

			return a.withStore(cmd, func(ctx context.Context, s *postgres.Store) error {
				u, err := s.Directory().CreateUser(ctx, goWarden.UserRecord{
					Email:          email,
					UserName:       email,
					FirstName:      first,
					LastName:       last,
					PasswordHash:   phc,
					Active:         true,
					EmailConfirmed: confirmed,
				}, roles...)
				if err != nil {
					return err
				}
				a.log.Info("user created", logging.UserID(u.ID))
				fmt.Fprintln(cmd.OutOrStdout(), u.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&email, "email", "", "login email")
	add.Flags().StringVar(&first, "first-name", "", "given name")
	add.Flags().StringVar(&last, "last-name", "", "surname")
	add.Flags().StringSliceVar(&roles, "role", []string{permission.RoleBasic}, "roles to grant")
	add.Flags().BoolVar(&confirmed, "confirmed", true, "mark the email as confirmed")

	userCmd.AddCommand(add)
	return userCmd
}

func newTrailCmd(a *app) *cobra.Command {
	var (
		userID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "trail",
		Short: "Print recent audit entries of a user as JSON lines, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			if limit <= 0 {
				limit = a.cfg.Trail.RecentLimit
			}
			return a.withStore(cmd, func(ctx context.Context, s *postgres.Store) error {
				entries, err := s.TrailStore().Recent(ctx, userID, limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, e := range entries {
					if err := enc.Encode(e); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID")
	cmd.Flags().IntVar(&limit, "limit", 0, fmt.Sprintf("max entries (default from config, else %d)", trail.DefaultRecentLimit))
	return cmd
}
