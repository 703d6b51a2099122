package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/user/mpki_plotter_go/internal/analysis"
	"github.com/user/mpki_plotter_go/internal/logging"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadEnvironment loads variables from envFile if it exists. Variables
// already set in the process environment win.
func LoadEnvironment(envFile string) {
	logger := logging.GetLogger()
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		return
	}
	logger.WithField("file", envFile).Debug("Loaded environment variables")
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	logger := logging.GetLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithField("filepath", path).WithError(err).Error("Failed to read config file")
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		logger.WithField("filepath", path).WithError(err).Error("Failed to parse config file")
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} with its value. Unset variables are left as is.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

// Validate checks everything that can be checked without reading the
// measurement files.
func (c *Config) Validate() error {
	series := c.ResolveSeries()
	if len(series) == 0 {
		return fmt.Errorf("at least one series (or tile) must be configured")
	}
	seen := make(map[string]bool, len(series))
	for i, s := range series {
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("series %d: path is required", i)
		}
		key := filepath.Clean(s.Path)
		if seen[key] {
			return fmt.Errorf("series %d: path %s is listed more than once", i, s.Path)
		}
		seen[key] = true
	}
	for _, tile := range c.Tiles {
		if tile <= 0 {
			return fmt.Errorf("tile size %d must be greater than 0", tile)
		}
	}

	if _, err := ParsePalette(c.Palette); err != nil {
		return err
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("output path is required")
	}
	if _, err := analysis.ParseZeroLoadsPolicy(c.ZeroLoads); err != nil {
		return err
	}
	if _, err := analysis.NewMetric(c.Metric.Name, c.Metric.Expression); err != nil {
		return err
	}

	ch := c.Chart
	if ch.DPI <= 0 {
		return fmt.Errorf("dpi must be greater than 0")
	}
	if ch.WidthIn <= 0 || ch.HeightIn <= 0 {
		return fmt.Errorf("chart size must be positive, got %gx%g in", ch.WidthIn, ch.HeightIn)
	}
	if ch.LegendColumns < 1 {
		return fmt.Errorf("legend_columns must be at least 1")
	}
	if ch.LineWidth < 0 || ch.MarkerSize < 0 || ch.LegendFontSize <= 0 {
		return fmt.Errorf("line_width and marker_size must not be negative and legend_font_size must be positive")
	}
	return nil
}
