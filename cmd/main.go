package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"waitline/cmd/command"
	_ "waitline/docs"
	"waitline/internal/config"
	"waitline/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//	@Title						waitline queue API
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@securityDefinitions.apikey	KioskKey
//	@in							header
//	@name						X-Kiosk-Key
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.IsProduction())
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	root := &cobra.Command{Use: cfg.App.Name, Short: "Walk-in queue and wait time service", SilenceUsage: true}
	root.AddCommand(
		command.Serve{Logger: zl}.Command(ctx, cfg),
		command.Migrate{Logger: zl}.Command(ctx, cfg),
		command.Sweep{Logger: zl}.Command(ctx, cfg),
		command.Staff{Logger: zl}.Command(ctx, cfg),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		zl.Fatal("command failed", zap.Error(err))
	}
}
