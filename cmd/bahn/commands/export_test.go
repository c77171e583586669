package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommandWithConfirm builds the command tree with a replaced
// confirmation prompt.
func NewRootCommandWithConfirm(confirm func(ctx context.Context, question string, def bool) (bool, error)) *cobra.Command {
	return newRootCommand(&Globals{confirm: confirm})
}
