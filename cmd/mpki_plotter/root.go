package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/user/mpki_plotter_go/internal/config"
	"github.com/user/mpki_plotter_go/internal/logging"
)

const (
	flagConfigName      = "config"
	flagDataDirName     = "data-dir"
	flagOutputName      = "output"
	flagPDFName         = "pdf"
	flagXlsxName        = "xlsx"
	flagMetricsFileName = "metrics-file"
	flagTilesName       = "tiles"
	flagZeroLoadsName   = "zero-loads"
	flagNoRotateName    = "no-rotate"
	flagDPIName         = "dpi"
	flagLogLevelName    = "log-level"
)

// flagValues mirrors the command line. Only flags the user actually set
// override the configuration.
type flagValues struct {
	configFile  string
	dataDir     string
	output      string
	pdf         string
	xlsx        string
	metricsFile string
	tiles       []int
	zeroLoads   string
	noRotate    bool
	dpi         int
	logLevel    string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var flags flagValues

	buildApp := func(cmd *cobra.Command) (*App, error) {
		cfg, err := config.LoadConfig(flags.configFile)
		if err != nil {
			return nil, err
		}
		applyFlags(cmd.Flags(), &flags, cfg)
		return NewApp(cfg, out), nil
	}

	rootCmd := &cobra.Command{
		Use:   "mpki_plotter",
		Short: "Plot MPKI against matrix size for each tile size",
		Long: `Reads one CSV per tile size ({size}.csv with the columns "Matrix size",
"L1-dcache-loads" and "L1-dcache-load-misses"), computes misses per
thousand loads for every row and draws one curve per tile size against a
logarithmic matrix-size axis.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logLevel != "" {
				if err := logging.SetLogLevel(flags.logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, flagConfigName, "", "YAML configuration file")
	pf.StringVar(&flags.dataDir, flagDataDirName, ".", "directory holding the measurement CSV files")
	pf.IntSliceVar(&flags.tiles, flagTilesName, nil, "tile sizes to plot, read from {size}.csv (replaces configured series)")
	pf.StringVar(&flags.zeroLoads, flagZeroLoadsName, "skip", "rows with zero loads: skip, fail or keep")
	pf.StringVar(&flags.logLevel, flagLogLevelName, "", "log level (trace, debug, info, warn, error)")

	f := rootCmd.Flags()
	f.StringVarP(&flags.output, flagOutputName, "o", config.DefaultOutput, "output PNG path")
	f.StringVar(&flags.pdf, flagPDFName, "", "also write a PDF report to this path")
	f.StringVar(&flags.xlsx, flagXlsxName, "", "also write an Excel workbook to this path")
	f.StringVar(&flags.metricsFile, flagMetricsFileName, "", "write run metrics in Prometheus text format to this path")
	f.BoolVar(&flags.noRotate, flagNoRotateName, false, "draw x tick labels horizontally")
	f.IntVar(&flags.dpi, flagDPIName, 300, "output resolution in dots per inch")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and check every series and print a summary, writing nothing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			return app.Validate()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "ticks",
		Short: "Print the matrix sizes used as x axis ticks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			return app.Ticks()
		},
	})
	return rootCmd
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(fs *pflag.FlagSet, flags *flagValues, cfg *config.Config) {
	if fs.Changed(flagDataDirName) {
		cfg.DataDir = flags.dataDir
	}
	if fs.Changed(flagTilesName) {
		cfg.Tiles = flags.tiles
		cfg.Series = nil
	}
	if fs.Changed(flagZeroLoadsName) {
		cfg.ZeroLoads = flags.zeroLoads
	}
	if fs.Lookup(flagOutputName) == nil {
		return // subcommands render nothing
	}
	if fs.Changed(flagOutputName) {
		cfg.Output = flags.output
	}
	if fs.Changed(flagPDFName) {
		cfg.PDF = flags.pdf
	}
	if fs.Changed(flagXlsxName) {
		cfg.Xlsx = flags.xlsx
	}
	if fs.Changed(flagMetricsFileName) {
		cfg.MetricsFile = flags.metricsFile
	}
	if fs.Changed(flagNoRotateName) {
		cfg.Chart.RotateTicks = !flags.noRotate
	}
	if fs.Changed(flagDPIName) {
		cfg.Chart.DPI = flags.dpi
	}
}
