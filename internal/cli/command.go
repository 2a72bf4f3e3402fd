package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"codeberg.org/snonux/sahachari/internal"
	"codeberg.org/snonux/sahachari/internal/app"
	"codeberg.org/snonux/sahachari/internal/config"
	"codeberg.org/snonux/sahachari/internal/logging"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// runner carries what every subcommand needs. Services are created by the
// root command's PersistentPreRunE.
type runner struct {
	flags *Flags
	viper *viper.Viper
	svc   *app.Services
}

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	root, _ := newRoot(flags)
	return root
}

func newRoot(flags *Flags) (*cobra.Command, *runner) {
	r := &runner{flags: flags, viper: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "sahachari",
		Short: "Telugu and English food and culture companion",
		Long: `sahachari translates between Telugu and English, speaks words aloud,
recognises ingredients in photos and suggests recipes. Every feature works
offline through local fallbacks and uses cloud APIs when they are configured.

Examples:
  sahachari translate ఉప్పు --to en
  sahachari speak "నమస్కారం" --lang te
  sahachari recognize dinner.jpg --recipes
  sahachari recipes generate rice tamarind peanuts
  sahachari serve --addr :8080`,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return r.setup()
		},
	}

	setupFlags(rootCmd, flags)
	bindFlagsToViper(rootCmd, r.viper)

	rootCmd.AddCommand(
		newTranslateCommand(r),
		newDetectCommand(r),
		newSpeakCommand(r),
		newRecognizeCommand(r),
		newRecipesCommand(r),
		newArticlesCommand(r),
		newFlashcardsCommand(r),
		newDataCommand(r),
		newStatusCommand(r),
		newServeCommand(r),
		newVersionCommand(),
	)
	return rootCmd, r
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.sahachari.yaml)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.LogJSON, "log-json", false, "Write JSON logs")
	pf.StringVar(&flags.DataDir, "data-dir", "", "Data directory (default is ~/.local/state/sahachari/data)")
	pf.StringVar(&flags.Storage, "storage", "", "Storage format: json, csv or sqlite")
	pf.BoolVar(&flags.JSON, "json", false, "Print results as JSON")
}

// viperKeys maps persistent flags to configuration keys.
var viperKeys = map[string]string{
	"log-level": "log.level",
	"log-json":  "log.json",
	"data-dir":  "data_dir",
	"storage":   "storage.format",
}

func bindFlagsToViper(cmd *cobra.Command, v *viper.Viper) {
	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if key, ok := viperKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})
}

// setup loads the configuration and creates the service container.
func (r *runner) setup() error {
	if r.svc != nil {
		return nil
	}
	cfg, err := config.Load(config.Options{File: r.flags.CfgFile, Viper: r.viper})
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log())
	if err != nil {
		return &config.Error{Key: "log", Reason: "cannot build logger", Err: err}
	}
	if cfg.File() != "" {
		logger.Debug("using config file", zap.String("path", cfg.File()))
	}
	r.svc = app.New(cfg, app.Options{Logger: logger})
	return nil
}

func (r *runner) close() error {
	if r.svc == nil {
		return nil
	}
	return r.svc.Close()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No configuration is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sahachari %s\n", internal.Version)
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, r := newRoot(NewFlags())
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := r.close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// ExitCode maps an error to the process exit code. Configuration errors
// exit with 2.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case config.IsError(err):
		return ExitConfig
	default:
		return ExitFailed
	}
}
