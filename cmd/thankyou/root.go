package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	thankyou "github.com/st-keller/thankyou-client"
)

const appName = "thankyou"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Thank-you widgets from the terminal",
		Long:          "thankyou drives a thank-you button and a message button against a feedback backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(appName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "dotenv files to read THANKYOU_* variables from")

	cmd.AddCommand(
		NewDemoCmd(),
		NewEnvCmd(),
	)

	return cmd
}

// loadEnv resolves the environment then applies explicit flags on top.
func loadEnv(cmd *cobra.Command) (thankyou.EnvConfig, error) {
	files, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return thankyou.EnvConfig{}, err
	}
	cfg, err := thankyou.LoadEnv(files...)
	if err != nil {
		return thankyou.EnvConfig{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("project") {
		cfg.ProjectName, _ = flags.GetString("project")
	}
	if flags.Changed("dev-id") {
		cfg.DevID, _ = flags.GetInt("dev-id")
	}
	if flags.Changed("delay") {
		cfg.InactivityDelay, _ = flags.GetDuration("delay")
	}
	if flags.Changed("user-id") {
		cfg.UserID, _ = flags.GetString("user-id")
	}
	return cfg, nil
}

func addWidgetFlags(cmd *cobra.Command) {
	cmd.Flags().String("base-url", "", "backend base URL (THANKYOU_BASE_URL)")
	cmd.Flags().String("project", "", "project slug (THANKYOU_PROJECT_NAME)")
	cmd.Flags().Int("dev-id", 0, "developer id (THANKYOU_DEV_ID)")
	cmd.Flags().Duration("delay", time.Second, "inactivity delay (THANKYOU_INACTIVITY_DELAY)")
	cmd.Flags().String("user-id", "", "fixed user id (THANKYOU_USER_ID)")
}

func NewEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"base_url":         cfg.BaseURL,
				"project_name":     cfg.ProjectName,
				"dev_id":           cfg.DevID,
				"inactivity_delay": cfg.InactivityDelay.String(),
				"user_id":          cfg.UserID,
				"ca_path":          cfg.Transport.CAPath,
				"cert_path":        cfg.Transport.CertPath,
				"submit_timeout":   cfg.Transport.Timeout.String(),
			})
		},
	}
	addWidgetFlags(cmd)
	return cmd
}
