package command

import (
	"context"
	"waitline/internal/config"
	"waitline/internal/storage"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type Migrate struct {
	Logger *zap.Logger
}

func (cmd Migrate) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.main(cfg)
		},
	}
}

func (cmd Migrate) main(cfg *config.Config) error {
	db, err := connect(cfg, cmd.Logger)
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return errors.Wrap(err, "migrate")
	}
	cmd.Logger.Info("schema is up to date")
	return nil
}
