package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/internal/config"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, driver error).
	ExitCodeError = 1
	// ExitCodeInvalid indicates invalid input: arguments, configuration,
	// manifests or access keys returned by the driver.
	ExitCodeInvalid = 2
	// ExitCodeNotFound indicates a referenced instance, rule or server does
	// not exist.
	ExitCodeNotFound = 3
	// ExitCodeNotConverged indicates the stored rules kept changing until
	// the pass limit was reached.
	ExitCodeNotConverged = 4
)

var (
	configPath string
	debug      bool

	// loadedConfig is populated by the persistent pre-run of every command.
	loadedConfig config.Config
)

// rootCmd represents the base command for the sharekeeper application.
var rootCmd = &cobra.Command{
	Use:   "sharekeeper",
	Short: "Keep share access rules enforced by the storage backend",
	Long: `sharekeeper records the access rules of share instances and keeps the
storage backend driver enforcing exactly those rules.

Rules can be managed one at a time with 'sharekeeper access', or declared
per instance in manifest files that 'sharekeeper serve' watches and applies.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfiguration,
}

// loadConfiguration initializes logging and loads config.yaml from the
// --config-path directory. --debug overrides the configured log level.
func loadConfiguration(cmd *cobra.Command, args []string) error {
	level := logging.LevelWarn
	if debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())

	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		var collection config.ConfigurationErrorCollection
		if errors.As(err, &collection) {
			fmt.Fprint(cmd.ErrOrStderr(), collection.GetDetailedReport())
		}
		return err
	}
	loadedConfig = cfg

	if !debug {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
	}
	return nil
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the
// returned error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "sharekeeper version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var collection config.ConfigurationErrorCollection
	switch {
	case err == nil:
		return ExitCodeSuccess
	case api.IsConvergenceError(err):
		return ExitCodeNotConverged
	case api.IsNotFound(err):
		return ExitCodeNotFound
	case api.IsInvalid(err), errors.As(err, &collection):
		return ExitCodeInvalid
	default:
		return ExitCodeError
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default $HOME/.config/sharekeeper)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newShareCmd())
	rootCmd.AddCommand(newAccessCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newServeCmd())
}
