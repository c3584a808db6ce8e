package client

import (
	"encoding/json"
	"fmt"
	"regexp"

	transports "github.com/eigenein/myiot/internal/cmd/client/transports"
	"github.com/eigenein/myiot/internal/event"
	"github.com/spf13/cobra"
)

// newWatchCommand constructs the `watch` command which follows the live feed.
func newWatchCommand(baseURL BaseURLFunc) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print events as they are dispatched",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, _ := cmd.Flags().GetBool("snapshot")
			limit, _ := cmd.Flags().GetInt("limit")
			pattern, _ := cmd.Flags().GetString("channel")

			var filter *regexp.Regexp
			if pattern != "" {
				re, err := regexp.Compile("^(?:" + pattern + ")$")
				if err != nil {
					return fmt.Errorf("invalid --channel: %w", err)
				}
				filter = re
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return getTransport(baseURL).Watch(cmd.Context(), transports.WatchRequest{Snapshot: snapshot, Limit: limit},
				func(record string, e event.Event) error {
					if filter != nil && !filter.MatchString(e.Channel) {
						return nil
					}
					return enc.Encode(map[string]any{"record": record, "event": e})
				})
		},
	}
	watchCmd.Flags().Bool("snapshot", false, "Print current actual values first")
	watchCmd.Flags().Int("limit", 0, "Stop after N records (0 = infinite)")
	watchCmd.Flags().String("channel", "", "Only print channels matching this regular expression")
	return watchCmd
}
