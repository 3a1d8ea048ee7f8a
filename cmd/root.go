package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/DominicWuest/ecosystem-ci/internal/suites"
	"github.com/DominicWuest/ecosystem-ci/pkg/ecosystem"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Read when --config is not given
const defaultConfigFile = "ecosystem-ci.yml"

var (
	configPath string
	workspace  string

	coreRef ecosystem.RepoRef
	release string
	verify  bool

	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "ecosystem-ci [suites...]",
	Short: "Test downstream projects against a local build or release of a core library",
	Long: `Clone and build a core library, then run the test suites of downstream projects with their dependencies
overridden to point at it. Without a subcommand this is the same as "run".`,
	Run:  runRun,
	Args: cobra.ArbitraryArgs,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(setupLogging)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", fmt.Sprintf("Config file declaring the core library and additional suites (default %s if present)", defaultConfigFile))
	flags.StringVarP(&workspace, "workspace", "w", "", "Directory all repositories are cloned into")

	flags.StringVar(&coreRef.Repo, "repo", "", "Repository of the core library, e.g. vitejs/vite")
	flags.StringVar(&coreRef.Branch, "branch", "", "Branch of the core library to use")
	flags.StringVar(&coreRef.Tag, "tag", "", "Tag of the core library to use")
	flags.StringVar(&coreRef.Commit, "commit", "", "Commit of the core library to use")
	flags.StringVar(&release, "release", "", "Published version of the core library to use instead of building it")
	flags.BoolVar(&verify, "verify", false, "Run the tests of the core library and every suite before overriding anything")

	flags.CountVarP(&verbosity, "verbose", "v", "Increase logging verbosity, can be repeated")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Disable all logging")
}

// setupLogging configures the standard logger, which is handed to every session
func setupLogging() {
	formatter := prefixed.TextFormatter{
		FullTimestamp: true,
	}
	logrus.SetFormatter(&formatter)

	switch {
	case quiet:
		logrus.SetOutput(io.Discard)
	case verbosity == 0:
		logrus.SetLevel(logrus.WarnLevel)
	case verbosity == 1:
		logrus.SetLevel(logrus.InfoLevel)
	case verbosity == 2:
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.SetLevel(logrus.TraceLevel)
	}
}

// loadConfig reads the config file and registers its suites
func loadConfig() (*ecosystem.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return ecosystem.DefaultConfig(), nil
		}
		path = defaultConfigFile
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to open config %s", path), err)
	}
	defer file.Close()

	config, err := ecosystem.GetConfig(file)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to read config %s", path), err)
	}

	for _, suite := range config.Suites {
		if _, dup := ecosystem.DefaultRegistry.Lookup(suite.Name); dup {
			return nil, &ecosystem.ConfigurationError{Msg: fmt.Sprintf("suite %s of config %s is already built in", suite.Name, path)}
		}
		ecosystem.DefaultRegistry.RegisterDescriptor(suite)
	}
	return config, nil
}

// newSession loads the config and creates the session all commands operate in
func newSession(cmd *cobra.Command) *ecosystem.Session {
	config, err := loadConfig()
	if err != nil {
		fail(cmd, err)
	}

	dir := config.Workspace
	if workspace != "" {
		dir = workspace
	}
	s, err := ecosystem.NewSession(dir, config.Core, logrus.StandardLogger())
	if err != nil {
		fail(cmd, err)
	}
	return s
}

// resolveSuites validates the suite names given as arguments
func resolveSuites(cmd *cobra.Command, args []string) []string {
	names, err := ecosystem.DefaultRegistry.Resolve(args)
	if err != nil {
		fail(cmd, err)
	}
	return names
}

// checkRelease rejects a malformed --release and --release combined with a core checkout
func checkRelease(cmd *cobra.Command) {
	if release == "" {
		return
	}
	if err := ecosystem.ValidateRelease(release); err != nil {
		fail(cmd, err)
	}
	if coreRef.Repo != "" || coreRef.Branch != "" || coreRef.Tag != "" || coreRef.Commit != "" {
		fail(cmd, &ecosystem.ConfigurationError{Msg: "--release can not be combined with --repo, --branch, --tag or --commit"})
	}
}

// commandContext returns a context cancelled on SIGINT or SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// fail terminates the process. Configuration errors are reported along with the usage of cmd.
func fail(cmd *cobra.Command, err error) {
	if ecosystem.IsConfigurationError(err) {
		logrus.Error(err)
		cmd.Usage()
		os.Exit(1)
	}
	logrus.Fatalf("%v", err)
}
