package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage cross-call sessions",
	}
	sessionCmd.AddCommand(newSessionCreateCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	return sessionCmd
}

func newSessionCreateCommand(ctx *commandContext) *cobra.Command {
	var voiceFlag string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session, optionally carrying a voice reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			service, _, closeStore, err := ctx.openService(logger)
			if err != nil {
				return err
			}
			defer closeStore()

			session, err := service.CreateSession(cmd.Context(), voiceFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s\n", session.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&voiceFlag, "voice", "", "Voice reference to reuse across renders")
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			service, _, closeStore, err := ctx.openService(logger)
			if err != nil {
				return err
			}
			defer closeStore()

			session, err := service.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", session.ID)
			fmt.Fprintf(out, "Voice:    %s\n", session.VoiceReference)
			fmt.Fprintf(out, "Created:  %s\n", session.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
