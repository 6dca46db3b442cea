package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// -- pause --

var pauseCmd = &cobra.Command{
	Use:   "pause <campaign-id>",
	Short: "Pause a running campaign at the next batch boundary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("execute"); err != nil {
			return err
		}

		env, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Executor.Pause(ctx, args[0]); err != nil {
			return eris.Wrap(err, "pause campaign")
		}

		zap.L().Info("pause requested", zap.String("campaign_id", args[0]))
		fmt.Printf("Campaign %s paused. The worker stops at its next batch boundary.\n", truncateID(args[0]))
		return nil
	},
}

// -- resume --

var resumeCmd = &cobra.Command{
	Use:   "resume <campaign-id>",
	Short: "Resume a paused campaign, skipping completed work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("execute"); err != nil {
			return err
		}

		env, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Executor.Resume(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "resume campaign")
		}

		zap.L().Info("resumed campaign finished",
			zap.String("campaign_id", summary.CampaignID),
			zap.String("status", string(summary.Status)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// -- status --

var statusCmd = &cobra.Command{
	Use:   "status [campaign-id]",
	Short: "Show campaign status",
	Long:  "With a campaign ID, prints the full campaign record as JSON. Without one, lists draft, running, and paused campaigns.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if len(args) == 1 {
			c, err := st.GetCampaign(ctx, args[0])
			if err != nil {
				return eris.Wrap(err, "load campaign")
			}
			if c == nil {
				return eris.Errorf("campaign %s not found", args[0])
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		}

		var campaigns []model.Campaign
		for _, status := range []model.CampaignStatus{model.CampaignDraft, model.CampaignRunning, model.CampaignPaused} {
			batch, err := st.ListCampaignsByStatus(ctx, status)
			if err != nil {
				return eris.Wrapf(err, "list %s campaigns", status)
			}
			campaigns = append(campaigns, batch...)
		}

		if len(campaigns) == 0 {
			fmt.Fprintln(os.Stderr, "No active campaigns.")
			return nil
		}

		formatCampaignsList(os.Stdout, campaigns)
		return nil
	},
}

// formatCampaignsList writes a tabular list of campaigns to w.
func formatCampaignsList(out io.Writer, campaigns []model.Campaign) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tLOCATION\tSTATUS\tBIZ\tEMAILS\tCOST\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t--------\t------\t---\t------\t----\t-------")

	for _, c := range campaigns {
		name := c.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t$%.2f\t%s\n",
			truncateID(c.ID),
			name,
			c.Location,
			c.Status,
			c.TotalBusinesses,
			c.TotalEmails,
			c.Costs.Total(),
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
}
