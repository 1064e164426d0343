package cmd

import (
	"fmt"
	"time"

	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/spf13/cobra"
)

func DraftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Maintain authoring session files",
	}
	cmd.AddCommand(draftsPurgeCmd())
	return cmd
}

func draftsPurgeCmd() *cobra.Command {
	var (
		dir string
		age time.Duration
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete staged uploads older than --age",
		Long:  "Delete staged uploads left behind by sessions that ended without publishing, for example after a restart.",
		RunE: func(c *cobra.Command, args []string) error {
			staging, err := draft.NewStaging(dir)
			if err != nil {
				return err
			}
			n, err := staging.PurgeOlderThan(age)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d staged file(s) from %s\n", n, staging.Dir())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", envOr("STAGING_DIR", "./data/staging"), "staging directory")
	cmd.Flags().DurationVar(&age, "age", 24*time.Hour, "minimum age of files to delete")
	return cmd
}
