package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var (
	createName      string
	createLocation  string
	createKeywords  []string
	createProfile   string
	createTemplate  string
	createOrgID     string
	createMaxPerZip int
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Plan coverage and persist a draft campaign",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("create"); err != nil {
			return err
		}

		env, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := env.Executor.Create(ctx, pipeline.CreateRequest{
			Name:      createName,
			Location:  createLocation,
			Keywords:  createKeywords,
			Profile:   model.Profile(createProfile),
			Template:  createTemplate,
			OrgID:     createOrgID,
			MaxPerZip: createMaxPerZip,
		})
		if err != nil {
			return eris.Wrap(err, "create campaign")
		}

		zap.L().Info("campaign created",
			zap.String("campaign_id", c.ID),
			zap.String("name", c.Name),
			zap.String("location", c.Location),
			zap.Float64("estimated_cost_usd", c.EstimatedCostUSD),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	},
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "campaign name (required)")
	createCmd.Flags().StringVar(&createLocation, "location", "", `target location, e.g. "Atlanta, GA" or a ZIP (required)`)
	createCmd.Flags().StringSliceVar(&createKeywords, "keywords", nil, "business keywords, comma separated (required)")
	createCmd.Flags().StringVar(&createProfile, "profile", "balanced", "coverage profile (budget, balanced, aggressive, custom)")
	createCmd.Flags().StringVar(&createTemplate, "template", "auto", "writer template name")
	createCmd.Flags().StringVar(&createOrgID, "org-id", "", "owning organisation ID")
	createCmd.Flags().IntVar(&createMaxPerZip, "max-per-zip", 0, "cap on businesses per ZIP (default from config)")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("location")
	_ = createCmd.MarkFlagRequired("keywords")
	rootCmd.AddCommand(createCmd)
}
