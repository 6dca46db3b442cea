package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/apify"
	"github.com/sells-group/leadgen-cli/pkg/verifier"
)

// verifyProbeAddress is a known-deliverable address. The probe checks
// reachability and auth, not the verdict.
const verifyProbeAddress = "support@millionverifier.com"

var (
	runCampaignID string
	runTest       bool
	runMaxPerZip  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a campaign end to end",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runTest {
			return runConnectivityTest(ctx)
		}

		if runCampaignID == "" {
			return eris.New("--campaign-id is required (or use --test)")
		}
		if err := cfg.Validate("execute"); err != nil {
			return err
		}

		env, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Executor.Execute(ctx, runCampaignID, runMaxPerZip)
		if err != nil {
			return eris.Wrap(err, "campaign execution")
		}

		zap.L().Info("campaign execution finished",
			zap.String("campaign_id", summary.CampaignID),
			zap.String("status", string(summary.Status)),
			zap.Int("businesses", summary.TotalBusinesses),
			zap.Int("emails", summary.TotalEmails),
			zap.Float64("cost_usd", summary.CostUSD),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

// connectivity groups the external dependencies the --test probe pings.
type connectivity struct {
	ping     func(ctx context.Context) error
	actors   apify.Client
	verifier verifier.Client
	llm      anthropicpkg.Client
	model    string
}

// testConnectivity pings every dependency and reports all failures at once
// so a broken environment surfaces in one pass.
func testConnectivity(ctx context.Context, conn connectivity) error {
	var failed []string

	if err := conn.ping(ctx); err != nil {
		zap.L().Error("postgres ping failed", zap.Error(err))
		failed = append(failed, "postgres")
	}

	if user, err := conn.actors.Me(ctx); err != nil {
		zap.L().Error("apify ping failed", zap.Error(err))
		failed = append(failed, "apify")
	} else {
		zap.L().Info("apify reachable", zap.String("username", user.Username))
	}

	if _, err := conn.verifier.Verify(ctx, verifyProbeAddress); err != nil {
		zap.L().Error("verifier ping failed", zap.Error(err))
		failed = append(failed, "verifier")
	}

	if _, err := conn.llm.CreateMessage(ctx, anthropicpkg.MessageRequest{
		Model:     conn.model,
		MaxTokens: 1,
		Messages:  []anthropicpkg.Message{{Role: "user", Content: "ping"}},
	}); err != nil {
		zap.L().Error("llm ping failed", zap.Error(err))
		failed = append(failed, "llm")
	}

	if len(failed) > 0 {
		return eris.Errorf("unreachable services: %s", strings.Join(failed, ", "))
	}
	return nil
}

// errConnectivity maps to exit code 2 in main so wrappers can tell a broken
// environment from an execution error.
var errConnectivity = eris.New("connectivity test failed")

func runConnectivityTest(ctx context.Context) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var apifyOpts []apify.Option
	if cfg.Apify.BaseURL != "" {
		apifyOpts = append(apifyOpts, apify.WithBaseURL(cfg.Apify.BaseURL))
	}
	var verifierOpts []verifier.Option
	if cfg.Verifier.BaseURL != "" {
		verifierOpts = append(verifierOpts, verifier.WithBaseURL(cfg.Verifier.BaseURL))
	}

	conn := connectivity{
		ping:     st.Ping,
		actors:   apify.NewClient(cfg.Apify.APIKey, apifyOpts...),
		verifier: verifier.NewClient(cfg.Verifier.APIKey, verifierOpts...),
		llm:      anthropicpkg.NewClient(cfg.LLM.APIKey),
		model:    cfg.LLM.LightModel,
	}

	if err := testConnectivity(ctx, conn); err != nil {
		zap.L().Error("connectivity test failed", zap.Error(err))
		return errConnectivity
	}

	fmt.Println("All services reachable.")
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runCampaignID, "campaign-id", "", "campaign to execute")
	runCmd.Flags().BoolVar(&runTest, "test", false, "ping Postgres, Apify, the verifier, and the LLM, then exit")
	runCmd.Flags().IntVar(&runMaxPerZip, "max-per-zip", 0, "override the campaign's per-ZIP cap")
	rootCmd.AddCommand(runCmd)
}
