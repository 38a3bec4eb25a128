package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

// newSlugCmd prints the slug the board would generate for a posting, which is
// the path segment under /job/.
func newSlugCmd() *cobra.Command {
	var title, company, city string
	cmd := &cobra.Command{
		Use:   "slug",
		Short: "Prints the job slug for a title, company and city",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if title == "" || company == "" {
				return errors.New("--title and --company are required")
			}
			slug := vacancy.Slug(title, company, city)
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), slug); err != nil {
				return fmt.Errorf("write slug: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "job title")
	cmd.Flags().StringVar(&company, "company", "", "company name")
	cmd.Flags().StringVar(&city, "city", "", "job city")
	return cmd
}
