package command

import (
	"context"
	"strings"
	"waitline/internal/auth"
	"waitline/internal/config"
	"waitline/internal/models"
	"waitline/internal/storage"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Staff manages staff accounts. There is no self-registration.
type Staff struct {
	Logger *zap.Logger
}

type staffInput struct {
	name     string
	email    string
	password string
	role     string
}

func (cmd Staff) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "staff",
		Short: "manage staff accounts",
	}

	var in staffInput
	add := &cobra.Command{
		Use:   "add",
		Short: "create a staff account",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.add(ctx, cfg, in)
		},
	}
	add.Flags().StringVar(&in.name, "name", "", "display name")
	add.Flags().StringVar(&in.email, "email", "", "login email")
	add.Flags().StringVar(&in.password, "password", "", "login password")
	add.Flags().StringVar(&in.role, "role", auth.RoleStaff, "staff or manager")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	root.AddCommand(add)
	return root
}

func (cmd Staff) add(ctx context.Context, cfg *config.Config, in staffInput) error {
	if !auth.ValidRole(in.role) {
		return errors.Errorf("staff: unknown role %q", in.role)
	}
	if len(in.password) < 8 {
		return errors.New("staff: password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "staff: hash password")
	}

	db, err := connect(cfg, cmd.Logger)
	if err != nil {
		return err
	}
	account := &models.Staff{
		Name:         strings.TrimSpace(in.name),
		Email:        strings.ToLower(strings.TrimSpace(in.email)),
		PasswordHash: string(hash),
		Role:         in.role,
	}
	if err := storage.NewStaffRepository(db).Create(ctx, account); err != nil {
		return err
	}
	cmd.Logger.Info("staff account created", zap.String("id", account.ID), zap.String("role", account.Role))
	return nil
}
