package cmd

import (
	"github.com/spf13/cobra"

	surrealdb "github.com/surrealdb/surrealdriver"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

type outcomeDoc struct {
	Status string `json:"status" yaml:"status"`
	Time   string `json:"time,omitempty" yaml:"time,omitempty"`
	Result any    `json:"result" yaml:"result"`
}

func queryCmd(r *root) *cobra.Command {
	var vars map[string]string
	cmd := &cobra.Command{
		Use:   "query <surrealql>",
		Short: "Run SurrealQL and print one outcome per statement",
		Long: `Runs the statements and prints a list of {status, time, result} outcomes.
A status line per statement goes to stderr. The exit status is 3 when any
statement failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := r.context(cmd.Context())
			defer cancel()

			db, err := r.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			resp, err := db.Query(ctx, args[0], parseVars(vars))
			if err != nil {
				return err
			}
			return r.printResponse(cmd, resp)
		},
	}
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Query variable, specified as key=value. The value is read as JSON when it parses, as a string otherwise. May be repeated.")
	return cmd
}

// parseVars reads each value as JSON when it parses, so --var n=1 binds a number.
func parseVars(vars map[string]string) map[string]any {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]any, len(vars))
	for k, s := range vars {
		if v, err := models.ValueFromJSON([]byte(s)); err == nil {
			out[k] = v
			continue
		}
		out[k] = s
	}
	return out
}

func (r *root) printResponse(cmd *cobra.Command, resp *surrealdb.Response) error {
	outcomes := resp.Outcomes()
	docs := make([]outcomeDoc, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		doc := outcomeDoc{Status: o.Status, Time: o.Time}
		msg, _ := o.Message()
		if o.OK() {
			result, err := plain(o.Result())
			if err != nil {
				return err
			}
			doc.Result = result
		} else {
			doc.Result = msg
		}
		docs[i] = doc
		r.fmt.status(cmd.ErrOrStderr(), i, o.OK(), o.Time, msg)
	}

	if err := r.fmt.output(cmd.OutOrStdout(), docs); err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return withCode(err, ExitStatement)
	}
	return nil
}
