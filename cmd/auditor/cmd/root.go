package cmd

import (
	"fmt"
	"os"
	"strings"

	"fx-compliance-auditor/cmd/auditor/config"
	"fx-compliance-auditor/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	outputFile string
	verbose    bool

	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "auditor",
	Short: "Foreign-exchange compliance auditing tool",
	Long: `Auditor reviews the foreign-exchange movements of a bank statement
against exchange-operation records and exchange declarations. It proposes
record evidence for each movement, balances declaration selections, groups
repeated declaration identifiers and summarises the compliance reviews.

Examples:
  auditor dashboard --snapshot audit.json --records ./xml
  auditor match --snapshot audit.json --records ./xml --output-format csv
  auditor duplicates --records ./xml
  auditor links --snapshot audit.json --movement 4f1c... --search 1510
  auditor version`,
	Version:       getVersionString(),
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (optional)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringP("output-format", "f", "console", "output format: console, json, csv")
	flags.StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")
	flags.String("match-tolerance", "0.05", "amount tolerance for record matching and duplicate groups")
	flags.String("split-tolerance", "0.01", "difference below which operations balance their movement")
	flags.Int("top-findings", 10, "number of flagged operations shown on the dashboard")

	// Bind flags to viper
	viper.BindPFlag("verbose", flags.Lookup("verbose"))
	viper.BindPFlag(config.KeyOutputFormat, flags.Lookup("output-format"))
	viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	viper.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	viper.BindPFlag(config.KeyMatchTolerance, flags.Lookup("match-tolerance"))
	viper.BindPFlag(config.KeySplitTolerance, flags.Lookup("split-tolerance"))
	viper.BindPFlag(config.KeyTopFindings, flags.Lookup("top-findings"))
}

// initConfig reads in .env files, the config file and ENV variables.
func initConfig() {
	// .env.local overrides .env
	for _, envFile := range []string{".env.local", ".env"} {
		loadEnvFile(envFile)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		// If a config file is specified, read it in.
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match, e.g. AUDITOR_ATTRIBUTES_PRIMARY
	viper.SetEnvPrefix("AUDITOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// loadEnvFile loads a single .env file; a missing file is not an error.
// godotenv never overrides variables that are already set.
func loadEnvFile(filename string) {
	if err := godotenv.Load(filename); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Loaded %s\n", filename)
	}
}

// loadSettings resolves the configuration and installs the global logger
func loadSettings() (*config.Config, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logConfig := settings.LoggerConfig()
	if verbose && settings.LogLevel == logger.WarnLevel {
		logConfig.Level = logger.InfoLevel
	}
	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return nil, err
	}
	logger.SetGlobalLogger(log)

	return settings, nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
