package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func versionCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := r.context(cmd.Context())
			defer cancel()

			db, err := r.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			v, err := db.Version(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
			return err
		},
	}
}
