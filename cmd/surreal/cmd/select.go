package cmd

import (
	"github.com/spf13/cobra"
)

func selectCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "select <table|record>",
		Short: "Select a table or a record",
		Long:  `Prints the selected records as a list. "person" selects a table and "person:tobie" a record.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := r.context(cmd.Context())
			defer cancel()

			db, err := r.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			o, err := db.Select(ctx, args[0])
			if err != nil {
				return err
			}
			values, err := o.Values()
			if err != nil {
				return err
			}
			records, err := plainAll(values)
			if err != nil {
				return err
			}
			return r.fmt.output(cmd.OutOrStdout(), records)
		},
	}
}
