package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
	"github.com/aegis-vc/dealmemo-cli/internal/store"
)

var (
	runsStatus  string
	runsCompany string
	runsLimit   int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect analysis runs and memo history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:      model.RunStatus(runsStatus),
			CompanyName: runsCompany,
			Limit:       runsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOMPANY\tSTATUS\tMEMO\tCREATED")
		for _, r := range runs {
			memoID := r.MemoID
			if memoID == "" {
				memoID = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.CompanyName, r.Status, memoID, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its memo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		out := map[string]any{"run": run}
		if run.MemoID != "" {
			memo, memoErr := st.GetMemo(ctx, run.MemoID)
			if memoErr != nil {
				return memoErr
			}
			out["memo"] = memo
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var memosCmd = &cobra.Command{
	Use:   "memos <company>",
	Short: "List all memo versions for a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		memos, err := st.ListMemoVersions(ctx, args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tID\tSCORE\tRECOMMENDATION\tCREATED")
		for _, m := range memos {
			fmt.Fprintf(w, "%d\t%s\t%.0f\t%s\t%s\n",
				m.Version, m.ID, m.Summary.SignalScore, m.Summary.Recommendation,
				m.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status")
	runsListCmd.Flags().StringVar(&runsCompany, "company", "", "filter by company")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 50, "max rows")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd, memosCmd)
}
