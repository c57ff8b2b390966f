package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/operations"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var momentsFlag string
	var languagesFlag string
	var sessionFlag string

	cmd := &cobra.Command{
		Use:   "submit <discovery-id>",
		Short: "Queue renders for selected moments and languages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexes, err := parseIndexes(momentsFlag)
			if err != nil {
				return err
			}
			languages := splitList(languagesFlag)

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			service, _, closeStore, err := ctx.openService(logger)
			if err != nil {
				return err
			}
			defer closeStore()

			opID, err := service.Submit(cmd.Context(), args[0], indexes, languages, sessionFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Operation %s: %d jobs queued\n", opID, len(indexes)*len(languages))
			fmt.Fprintln(cmd.OutOrStdout(), "Run `clipforge serve` to process the queue, `clipforge status` to watch it.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&momentsFlag, "moments", "m", "", "Comma-separated moment indexes, e.g. 0,1,3")
	cmd.Flags().StringVarP(&languagesFlag, "languages", "l", "", "Comma-separated target languages, e.g. en,es,de")
	cmd.Flags().StringVar(&sessionFlag, "session", "", "Session id carrying a voice reference")
	_ = cmd.MarkFlagRequired("moments")
	_ = cmd.MarkFlagRequired("languages")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [operation-id]",
		Short: "Show operation progress",
		Args:  cobra.MaximumNArgs(1),
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

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				ops, err := service.ListOperations(cmd.Context())
				if err != nil {
					return err
				}
				if len(ops) == 0 {
					fmt.Fprintln(out, "No operations")
					return nil
				}
				rows := make([][]string, 0, len(ops))
				for _, op := range ops {
					rows = append(rows, []string{
						op.ID,
						string(op.Status()),
						fmt.Sprintf("%d", len(op.Jobs)),
						op.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				printTable(out, []tableColumn{
					{name: "Operation"},
					{name: "Status"},
					{name: "Jobs", rightAlign: true},
					{name: "Created"},
				}, rows)
				return nil
			}

			op, err := service.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Operation %s: %s\n", op.ID, op.Status())
			rows := make([][]string, 0, len(op.Jobs))
			for _, job := range op.Jobs {
				detail := job.ArtifactPath
				if job.Status == operations.JobFailed {
					detail = fmt.Sprintf("[%s] %s", job.FailureKind, truncateText(job.ErrorMessage, 60))
				}
				rows = append(rows, []string{
					job.ID,
					fmt.Sprintf("%d", job.MomentIndex),
					job.Language,
					string(job.Status),
					fmt.Sprintf("%d", job.Attempts),
					detail,
				})
			}
			printTable(out, []tableColumn{
				{name: "Job"},
				{name: "Moment", rightAlign: true},
				{name: "Language"},
				{name: "Status"},
				{name: "Attempts", rightAlign: true},
				{name: "Detail"},
			}, rows)
			return nil
		},
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "fetch <operation-id> <job-id>",
		Short: "Copy a finished clip out of the workspace",
		Args:  cobra.ExactArgs(2),
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

			reader, err := service.Fetch(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			defer reader.Close()

			if outputFlag == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), reader)
				return err
			}
			target := outputFlag
			if target == "" {
				target = fmt.Sprintf("%s.mp4", args[1])
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil && filepath.Dir(target) != "." {
				return err
			}
			file, err := os.Create(target)
			if err != nil {
				return err
			}
			defer file.Close()
			if _, err := io.Copy(file, reader); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Destination path (- for stdout)")
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <operation-id>",
		Short: "Remove an operation's tracked state and artifacts",
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

			if err := service.Cleanup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Operation %s cleaned\n", args[0])
			return nil
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <operation-id>",
		Short: "Requeue an operation's failed jobs",
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

			requeued, err := service.Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed jobs\n", requeued)
			return nil
		},
	}
}

func parseIndexes(value string) ([]int, error) {
	parts := splitList(value)
	indexes := make([]int, 0, len(parts))
	for _, part := range parts {
		index, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid moment index %q", part)
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
