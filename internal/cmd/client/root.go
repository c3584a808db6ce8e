package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the myiot client.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "myiot",
		Short: "myiot client commands",
	}
	AddCommands(root, baseURL)
	return root
}

// AddCommands registers the client commands on an existing root.
func AddCommands(root *cobra.Command, baseURL BaseURLFunc) {
	root.AddCommand(
		newHealthCommand(baseURL),
		newActualCommand(baseURL),
		newChannelsCommand(baseURL),
		newLogCommand(baseURL),
		newWatchCommand(baseURL),
	)
}
