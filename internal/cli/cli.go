package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vk/stacgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// listFlag collects a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// csvFlag splits a comma separated value, dropping empty entries.
type csvFlag []string

func (c *csvFlag) String() string { return strings.Join(*c, ",") }

func (c *csvFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*c = append(*c, s)
		}
	}
	return nil
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("stacgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
StacGridGo - Load STAC items into a gridded, time-stacked raster dataset.

Usage:
  stacgridgo [options] ITEMS_PATH

Arguments:
  ITEMS_PATH
    A STAC item, FeatureCollection or NDJSON file, or a directory of them.

Options:
`)
		flagSet.PrintDefaults()
	}

	var configs listFlag
	var bands csvFlag
	flagSet.Var(&configs, "config", "Load configuration file (.hcl, .json) or directory of .hcl files. Repeatable.")
	flagSet.Var(&configs, "c", "Load configuration file (shorthand).")
	stacCfgFlag := flagSet.String("stac-cfg", "", "YAML file with per-collection asset configuration.")
	outFlag := flagSet.String("out", "", "Directory for GeoTIFF previews. Empty disables previews.")
	previewSizeFlag := flagSet.Int("preview-size", app.DefaultPreviewSize, "Longest edge of preview images, in pixels.")
	executorFlag := flagSet.String("executor", "", "Task executor. Options: 'local' or 'graph'.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent read workers. 0 uses the config or CPU count.")
	flagSet.Var(&bands, "bands", "Comma separated list of bands to load.")
	crsFlag := flagSet.String("crs", "", "Output CRS, e.g. 'EPSG:32633'.")
	resolutionFlag := flagSet.String("resolution", "", "Output pixel size in CRS units.")
	groupByFlag := flagSet.String("groupby", "", "Grouping policy: 'time', 'solar_day', 'id' or a property name.")
	metadataFlag := flagSet.Bool("metadata-only", false, "Print collection metadata without reading pixels.")
	progressFlag := flagSet.Bool("progress", false, "Show a progress bar while loading.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No items path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one ITEMS_PATH, got %d", flagSet.NArg())}
	}
	path := flagSet.Arg(0)
	slog.Debug("Items path determined.", "path", path)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	var resolution float64
	if *resolutionFlag != "" {
		r, err := strconv.ParseFloat(*resolutionFlag, 64)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid resolution %q", *resolutionFlag)}
		}
		resolution = r
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ItemsPath:       path,
		ConfigPaths:     configs,
		StacCfgPath:     *stacCfgFlag,
		OutDir:          *outFlag,
		PreviewSize:     *previewSizeFlag,
		Executor:        strings.ToLower(*executorFlag),
		Workers:         *workersFlag,
		Bands:           bands,
		CRS:             *crsFlag,
		Resolution:      resolution,
		GroupBy:         *groupByFlag,
		MetadataOnly:    *metadataFlag,
		Progress:        *progressFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
