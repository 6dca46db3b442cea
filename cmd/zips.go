package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/zipcatalog"
)

var zipsCmd = &cobra.Command{
	Use:   "zips",
	Short: "Manage the offline ZIP gazetteer",
	Long:  "Commands for building and querying the local SQLite ZIP catalog used by coverage planning.",
}

// -- zips ingest --

var zipsIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the gazetteer from Census ZCTA data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		shapefileURL, _ := cmd.Flags().GetString("shapefile-url")
		crosswalk, _ := cmd.Flags().GetString("crosswalk")
		workDir, _ := cmd.Flags().GetString("workdir")

		n, err := zipcatalog.Ingest(ctx, cat, zipcatalog.IngestOptions{
			ShapefileURL:  shapefileURL,
			CrosswalkPath: crosswalk,
			WorkDir:       workDir,
		})
		if err != nil {
			return eris.Wrap(err, "zips ingest")
		}

		zap.L().Info("gazetteer ingested",
			zap.Int("zips", n),
			zap.String("path", cfg.ZipCatalog.Path),
		)
		fmt.Printf("Ingested %d ZIP codes into %s\n", n, cfg.ZipCatalog.Path)
		return nil
	},
}

// -- zips lookup --

var zipsLookupCmd = &cobra.Command{
	Use:   "lookup <zip>",
	Short: "Show one gazetteer row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		info, err := cat.Lookup(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "zips lookup")
		}
		if info == nil {
			return eris.Errorf("ZIP %s not in catalog", args[0])
		}

		formatZipInfo(os.Stdout, info)
		return nil
	},
}

// -- zips count --

var zipsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the number of catalog rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		n, err := cat.Count(ctx)
		if err != nil {
			return eris.Wrap(err, "zips count")
		}

		fmt.Printf("%d ZIP codes\n", n)
		return nil
	},
}

func openCatalog() (*zipcatalog.Catalog, error) {
	if err := cfg.Validate("zips"); err != nil {
		return nil, err
	}
	cat, err := zipcatalog.Open(cfg.ZipCatalog.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open zip catalog")
	}
	return cat, nil
}

// formatZipInfo writes one gazetteer row to w.
func formatZipInfo(out io.Writer, z *zipcatalog.ZipInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ZIP\tCITY\tSTATE\tLAT\tLNG\tPOPULATION\tDENSITY")
	_, _ = fmt.Fprintln(w, "---\t----\t-----\t---\t---\t----------\t-------")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\t%d\t%.1f\n",
		z.Zip, z.City, z.State, z.Lat, z.Lng, z.Population, z.Density)
	_ = w.Flush()
}

func init() {
	zipsIngestCmd.Flags().String("shapefile-url", "", "ZCTA shapefile archive (default: Census TIGER over FTP)")
	zipsIngestCmd.Flags().String("crosswalk", "", "local XLSX mapping ZIPs to city, state, population")
	zipsIngestCmd.Flags().String("workdir", "", "scratch directory for downloads (default: under the system temp dir)")

	zipsCmd.AddCommand(zipsIngestCmd)
	zipsCmd.AddCommand(zipsLookupCmd)
	zipsCmd.AddCommand(zipsCountCmd)
	rootCmd.AddCommand(zipsCmd)
}
