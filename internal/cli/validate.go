package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/cadence/internal/errors"
)

// ValidationResponse is the JSON response of the validate command.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Dir      string   `json:"dir"`
	Problems []string `json:"problems"`
}

// AddValidateCommand adds the validate command to the root command.
func AddValidateCommand(root *cobra.Command, flags *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every definition file",
		Long: `Load every scenario, campaign, dataset and environment file under the
storage root and report decoding errors, failed field validations, duplicate
ids and references to missing definitions.

Examples:
  cadence validate
  cadence validate --dir ./suite --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	root.AddCommand(cmd)
}

func runValidate(ctx context.Context, w io.Writer, flags *GlobalFlags) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	logger := GetLogger()

	defs, err := openDefinitions(ctx, flags, logger)
	if err != nil {
		return err
	}

	problems := defs.Check(ctx)
	resp := ValidationResponse{
		Valid:    len(problems) == 0,
		Dir:      defs.Dir(),
		Problems: make([]string, len(problems)),
	}
	for i, p := range problems {
		resp.Problems[i] = p.Error()
	}

	if flags.Output == OutputJSON {
		if err := writeJSON(w, resp); err != nil {
			return err
		}
	} else {
		styles := newOutputStyles()
		if resp.Valid {
			_, _ = fmt.Fprintf(w, "All definitions under %s are valid.\n", resp.Dir)
		} else {
			_, _ = fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("%d problem(s) under %s", len(problems), resp.Dir)))
			for _, p := range resp.Problems {
				_, _ = fmt.Fprintln(w, styles.errText.Render("  - "+p))
			}
		}
	}

	if !resp.Valid {
		return fmt.Errorf("%w: %d problem(s)", errors.ErrDefinitionInvalid, len(problems))
	}
	return nil
}
