package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCrawlCmd() *cobra.Command {
	var startPage int
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the showcase listing into the dataset",
		Long: `Fetches listing pages starting at --start-page until a page yields no
projects, appending each page's projects to the dataset as soon as it is
extracted. Starting at page 1 replaces the dataset; any other start page
appends to it, so an interrupted crawl can be resumed from the next page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, cfg, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(appInstance)
			if !cmd.Flags().Changed("start-page") {
				startPage = cfg.Crawl.StartPage
			}
			if startPage < 1 {
				return fmt.Errorf("--start-page must be >= 1, got %d", startPage)
			}

			summary, err := appInstance.Crawl(cmd.Context(), startPage)
			if err != nil {
				return fmt.Errorf("run crawl: %w", err)
			}
			appInstance.Logger().Info("Crawl command finished.",
				zap.String("run_id", summary.RunID),
				zap.Int("records", summary.Records),
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&startPage, "start-page", 1, "listing page to start from; pages before it are left untouched")
	return cmd
}
