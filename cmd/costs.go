package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
)

var costsCampaignID string

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show per-service spend for a campaign",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		c, err := st.GetCampaign(ctx, costsCampaignID)
		if err != nil {
			return eris.Wrap(err, "load campaign")
		}
		if c == nil {
			return eris.Errorf("campaign %s not found", costsCampaignID)
		}

		rows, err := st.CampaignCosts(ctx, costsCampaignID)
		if err != nil {
			return eris.Wrap(err, "load campaign costs")
		}

		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No tracked costs yet.")
		} else {
			formatCostRollup(os.Stdout, computeCostRollup(rows))
			fmt.Println()
		}

		formatCostSummary(os.Stdout, c)
		return nil
	},
}

// costRollup aggregates tracked API cost rows by service.
type costRollup struct {
	Service string
	Calls   int
	Items   int
	CostUSD float64
}

func computeCostRollup(rows []model.APICost) []costRollup {
	idx := make(map[string]int)
	var out []costRollup
	for _, r := range rows {
		i, ok := idx[r.Service]
		if !ok {
			i = len(out)
			idx[r.Service] = i
			out = append(out, costRollup{Service: r.Service})
		}
		out[i].Calls++
		out[i].Items += r.Items
		out[i].CostUSD += r.CostUSD
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// formatCostRollup writes per-service spend to w.
func formatCostRollup(out io.Writer, rollups []costRollup) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SERVICE\tCALLS\tITEMS\tCOST")
	_, _ = fmt.Fprintln(w, "-------\t-----\t-----\t----")
	for _, r := range rollups {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t$%.4f\n", r.Service, r.Calls, r.Items, r.CostUSD)
	}
	_ = w.Flush()
}

// formatCostSummary writes the campaign accumulators to w.
func formatCostSummary(out io.Writer, c *model.Campaign) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Maps:\t$%.4f\n", c.Costs.Maps)
	_, _ = fmt.Fprintf(w, "Social:\t$%.4f\n", c.Costs.Social)
	_, _ = fmt.Fprintf(w, "Professional:\t$%.4f\n", c.Costs.Professional)
	_, _ = fmt.Fprintf(w, "Verification:\t$%.4f\n", c.Costs.Verification)
	_, _ = fmt.Fprintf(w, "LLM:\t$%.4f\n", c.Costs.LLM)
	_, _ = fmt.Fprintf(w, "Total:\t$%.4f\n", c.Costs.Total())
	if c.EstimatedCostUSD > 0 {
		_, _ = fmt.Fprintf(w, "Estimated:\t$%.4f\n", c.EstimatedCostUSD)
	}
	_ = w.Flush()
}

func init() {
	costsCmd.Flags().StringVar(&costsCampaignID, "campaign-id", "", "campaign to report on (required)")
	_ = costsCmd.MarkFlagRequired("campaign-id")
	rootCmd.AddCommand(costsCmd)
}
