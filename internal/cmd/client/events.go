package client

import (
	"errors"
	"fmt"
	"time"

	transports "github.com/eigenein/myiot/internal/cmd/client/transports"
	"github.com/spf13/cobra"
)

// newHealthCommand constructs the `health` command.
func newHealthCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the hub is serving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := getTransport(baseURL).Health(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
}

// newActualCommand constructs the `actual` command.
func newActualCommand(baseURL BaseURLFunc) *cobra.Command {
	actualCmd := &cobra.Command{
		Use:   "actual [channel]",
		Short: "Show the latest value of every channel, or of one channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := getTransport(baseURL)
			if len(args) == 1 {
				e, err := t.ActualChannel(cmd.Context(), args[0])
				if errors.Is(err, transports.ErrNotFound) {
					return fmt.Errorf("channel %q has no actual value", args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			}
			actual, err := t.Actual(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), actual)
		},
	}
	return actualCmd
}

// newChannelsCommand constructs the `channels` command.
func newChannelsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List channels that have an actual value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			channels, err := getTransport(baseURL).Channels(cmd.Context())
			if err != nil {
				return err
			}
			for _, ch := range channels {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), ch)
			}
			return nil
		},
	}
}

// newLogCommand constructs the `log` command.
func newLogCommand(baseURL BaseURLFunc) *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show logged values of a channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			period, _ := cmd.Flags().GetDuration("period")
			sinceStr, _ := cmd.Flags().GetString("since")
			untilStr, _ := cmd.Flags().GetString("until")
			limit, _ := cmd.Flags().GetInt("limit")
			if channel == "" {
				return fmt.Errorf("--channel is required")
			}
			since, ok := parseAt(sinceStr)
			if !ok {
				return fmt.Errorf("invalid --since; expected ms or RFC3339")
			}
			until, ok := parseAt(untilStr)
			if !ok {
				return fmt.Errorf("invalid --until; expected ms or RFC3339")
			}
			entries, err := getTransport(baseURL).Log(cmd.Context(), transports.LogQuery{
				Channel: channel,
				Period:  period,
				Since:   since,
				Until:   until,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	logCmd.Flags().StringP("channel", "c", "", "Channel")
	logCmd.Flags().Duration("period", 24*time.Hour, "How far back to look")
	logCmd.Flags().String("since", "", "Start at timestamp: RFC3339 or ms (overrides --period)")
	logCmd.Flags().String("until", "", "Stop before timestamp: RFC3339 or ms")
	logCmd.Flags().Int("limit", 0, "Maximum number of entries (0 = all)")
	return logCmd
}
