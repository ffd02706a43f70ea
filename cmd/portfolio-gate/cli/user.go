package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/secfolio/portfolio-gate/internal/auth"
	"github.com/secfolio/portfolio-gate/internal/config"
	"github.com/secfolio/portfolio-gate/internal/storage"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage admin users",
	}

	cmd.AddCommand(newUserCreateCmd())

	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var (
		username string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user",
		Long:  "Create a back-office user. The password is prompted for and stored as a bcrypt hash.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserCreate(username, role)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (required)")
	cmd.Flags().StringVarP(&role, "role", "r", string(auth.RoleUser), "role: admin, manager or user")
	_ = cmd.MarkFlagRequired("username") //nolint:errcheck

	return cmd
}

func runUserCreate(username, role string) error {
	if !auth.Role(role).Valid() {
		return fmt.Errorf("unknown role %q (want admin, manager or user)", role)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return err
	}

	st, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		_ = st.Close() //nolint:errcheck
	}()

	user := &storage.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.CreateUser(context.Background(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("user %q already exists", username)
		}
		return err
	}

	fmt.Printf("Created %s user %q\n", role, username)
	return nil
}
