package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/operations"
	"clipforge/internal/orchestrator"
	"clipforge/internal/render"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the render worker pool until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			store, err := operations.Open(cfg)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer store.Close()

			manager := orchestrator.NewManager(
				cfg,
				store,
				ctx.newTranslator(cfg, logger),
				render.New(cfg, logger),
				logger,
			)
			if err := manager.Start(cmd.Context()); err != nil {
				return err
			}

			<-cmd.Context().Done()
			manager.Stop()
			return nil
		},
	}
}
