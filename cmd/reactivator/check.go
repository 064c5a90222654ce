package main

import (
	"github.com/spf13/cobra"
)

func checkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		Long: `Load and validate the configuration file without starting the server.

Examples:
  reactivator check
  reactivator check --config deploy/reactivator.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Path() == "" {
				warn(out, "%s not found, using defaults", flags.configPath)
			} else {
				success(out, "%s is valid", cfg.Path())
			}
			info(out, "listen:  %s", cfg.Address())
			if len(cfg.Bindings) == 0 {
				warn(out, "no bindings configured")
			}
			for _, b := range cfg.Bindings {
				info(out, "binding: %s <- %s", b.Field, describeBinding(b))
			}
			return nil
		},
	}
}
