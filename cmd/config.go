package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/s0up4200/reqflow/config"
)

var showPath string

// configCmd groups configuration commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	Long: `Print the configuration after defaults, the config file and REQFLOW_*
environment overrides are applied. Secrets are masked.

  reqflow config show --path client.timeout`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig(cmd.OutOrStdout(), cfg, showPath)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVar(&showPath, "path", "", "only print the value at this dotted path")
}

// showConfig renders cfg with durations as strings
func showConfig(w io.Writer, cfg *config.Config, path string) error {
	raw, err := json.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	doc := string(raw)
	for key, d := range map[string]fmt.Stringer{
		"client.timeout":        cfg.Client.Timeout,
		"client.repeat_window":  cfg.Client.RepeatWindow,
		"client.throttle_delay": cfg.Client.ThrottleDelay,
	} {
		if doc, err = sjson.Set(doc, key, d.String()); err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
	}

	if path != "" {
		res := gjson.Get(doc, path)
		if !res.Exists() {
			return fmt.Errorf("no setting at %s", path)
		}
		doc = res.Raw
	}

	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return writeJSON(w, v)
}
