package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskforge/internal/config"
	"github.com/ShayCichocki/taskforge/internal/engine"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify taskforge configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/taskforge/config.yaml
Project-specific overrides can be placed in .taskforge.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Printf("Set %s = %s\n", args[0], args[1])
			return nil
		}
	},
}

// configKeys lists the settable keys in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.max_tokens",
	"anthropic.bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"execution.mode",
	"execution.strict",
	"execution.max_parallel",
	"timeouts.worker",
	"logging.level",
	"logging.dir",
	"state.enabled",
	"state.path",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("credentials: %s\n", config.GetAPIKeySource(cfg))
	fmt.Printf("orchestrators: %s\n", strings.Join(sortedNames(cfg.Orchestrators), ", "))

	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Fprintf(os.Stderr, "(project overrides from %s)\n", p)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "anthropic.bedrock":
		return strconv.FormatBool(cfg.Anthropic.Bedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "execution.mode":
		return cfg.Execution.Mode, nil
	case "execution.strict":
		return strconv.FormatBool(cfg.Execution.Strict), nil
	case "execution.max_parallel":
		return strconv.Itoa(cfg.Execution.MaxParallel), nil
	case "timeouts.worker":
		return cfg.Timeouts.Worker.String(), nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.dir":
		return cfg.Logging.Dir, nil
	case "state.enabled":
		return strconv.FormatBool(cfg.State.Enabled), nil
	case "state.path":
		return cfg.State.Path, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for anthropic.max_tokens: %q", value)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.bedrock: %w", err)
		}
		cfg.Anthropic.Bedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "execution.mode":
		mode, err := engine.ParseMode(value)
		if err != nil {
			return err
		}
		cfg.Execution.Mode = string(mode)
	case "execution.strict":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for execution.strict: %w", err)
		}
		cfg.Execution.Strict = b
	case "execution.max_parallel":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for execution.max_parallel: %q", value)
		}
		cfg.Execution.MaxParallel = n
	case "timeouts.worker":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.worker: %w", err)
		}
		cfg.Timeouts.Worker = d
	case "logging.level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
			cfg.Logging.Level = strings.ToLower(value)
		default:
			return fmt.Errorf("invalid logging.level %q: want debug, info, warn or error", value)
		}
	case "logging.dir":
		cfg.Logging.Dir = value
	case "state.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for state.enabled: %w", err)
		}
		cfg.State.Enabled = b
	case "state.path":
		cfg.State.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
