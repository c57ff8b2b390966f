package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	var count int
	var maxDuration int

	cmd := &cobra.Command{
		Use:   "discover <source-video>",
		Short: "Find high-value moments in a source video",
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

			discovery, err := service.Discover(cmd.Context(), args[0], count, maxDuration)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Discovery %s (%d moments)\n", discovery.ID, len(discovery.Moments))
			rows := make([][]string, 0, len(discovery.Moments))
			for _, moment := range discovery.Moments {
				rows = append(rows, []string{
					fmt.Sprintf("%d", moment.Index),
					formatClock(moment.Start),
					formatClock(moment.End),
					fmt.Sprintf("%.1f", moment.Score),
					truncateText(moment.Hook, 48),
				})
			}
			printTable(out, []tableColumn{
				{name: "#", rightAlign: true},
				{name: "Start", rightAlign: true},
				{name: "End", rightAlign: true},
				{name: "Score", rightAlign: true},
				{name: "Hook"},
			}, rows)
			fmt.Fprintf(out, "\nNext: clipforge submit %s --moments 0,1 --languages en,es\n", discovery.ID)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of moments to return (default from config)")
	cmd.Flags().IntVar(&maxDuration, "max-duration", 0, "Maximum clip length in seconds (default from config)")
	return cmd
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
