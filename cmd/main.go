package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/srp-packages/build-tools/pkg"
	"github.com/srp-packages/build-tools/pkg/config"
	"github.com/srp-packages/build-tools/pkg/dispatch"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "srp-build",
	Short: "Build entry point for the render pipeline packages",
	Long: `Without arguments, this command looks for the automation tools next to the
parent of the working directory (../automation-tools) and runs their setup()
function. If they can't be found, a short notice is printed and nothing else happens.

The subcommands list the registered packages.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := pkg.GetProjectRoot(cfg.Root)
		if err != nil {
			return err
		}

		return dispatch.Run(context.Background(), dispatch.Options{
			AutomationDir: cfg.Automation.Dir,
			Module:        cfg.Automation.Module,
			SearchPath:    cfg.Automation.SearchPath,
			ProjectRoot:   projectRoot,
			DryRun:        cfg.DryRun,
			Force:         cfg.Force,
			Stdout:        cmd.OutOrStdout(),
			Stderr:        cmd.ErrOrStderr(),
			Logger:        &logger,
		})
	},
}

func loadConfig(cmd *cobra.Command) error {
	loaded, loader := config.Loader()
	if err := loader.Load(); err != nil {
		return err
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Root, _ = flags.GetString("root")
	}
	if flags.Changed("automation-dir") {
		cfg.Automation.Dir, _ = flags.GetString("automation-dir")
	}
	if flags.Changed("module") {
		cfg.Automation.Module, _ = flags.GetString("module")
	}
	if flags.Changed("search-path") {
		cfg.Automation.SearchPath, _ = flags.GetStringSlice("search-path")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("debug") {
		cfg.Log.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("dry") {
		cfg.DryRun, _ = flags.GetBool("dry")
	}
	if flags.Changed("force") {
		cfg.Force, _ = flags.GetBool("force")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = newLogger(cmd.ErrOrStderr(), cfg)
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("root", "", "project root (defaults to the closest directory containing .git)")
	flags.String("automation-dir", dispatch.DefaultAutomationDir, "directory containing the automation tools")
	flags.String("module", dispatch.DefaultModule, "name of the automation module")
	flags.StringSlice("search-path", nil, "additional directories to search for automation modules")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.Bool("debug", false, "include stack traces and raw log fields in the output")
	flags.BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	flags.BoolP("force", "f", false, "force build; always execute tasks even if they don't have to run")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
