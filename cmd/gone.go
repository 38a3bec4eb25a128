package cmd

import (
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobboard-prerender/internal/gone"
)

// newGoneCmd loads the configured 410 list once and prints the normalized
// paths, one per line.
func newGoneCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "gone",
		Short: "Prints the normalized 410 list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if source == "" {
				cfg, err := loadConfig()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				source = cfg.GoneSource()
			}

			var gcs *storage.Client
			if gone.IsGCS(source) {
				var err error
				if gcs, err = storage.NewClient(cmd.Context()); err != nil {
					return fmt.Errorf("gcs client init failed: %w", err)
				}
				defer func() { _ = gcs.Close() }()
			}
			src, err := gone.NewSource(source, gcs, http.DefaultClient)
			if err != nil {
				return fmt.Errorf("gone source: %w", err)
			}
			rc, err := src.Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch gone list: %w", err)
			}
			defer rc.Close() //nolint:errcheck // read-only
			set, err := gone.Parse(rc)
			if err != nil {
				return fmt.Errorf("parse gone list: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, p := range set.Paths() {
				if _, err := fmt.Fprintln(out, p); err != nil {
					return fmt.Errorf("write path: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "list location (file path, http(s) URL or gs:// URI); defaults to the configured source")
	return cmd
}
