package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Writes the unique-by-link dataset",
		Long: `Reads the whole dataset and writes a copy holding the first row seen for
each project link, in the original order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, _, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(appInstance)
			if _, err := appInstance.Dedupe(cmd.Context()); err != nil {
				return fmt.Errorf("run dedupe: %w", err)
			}
			return nil
		},
	}
}
