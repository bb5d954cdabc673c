package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flotilla",
	Short: "Flotilla manages repository storage backends",
	Long: `Flotilla exposes the repository storage layer of a version-control server
for operators: inspect, read and write repository files against any configured
backend (a local directory tree or a flat object store) through one
POSIX-like surface.
`,
}

var config *Config

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault("backend", "local")
	viper.SetDefault("root", ".flotilla/repos")
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("maxpushsize", "1GiB")
	if os.Getenv("FLOTILLA_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("FLOTILLA_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.flotilla")
		viper.AddConfigPath("/etc/flotilla")
		viper.SetConfigName("flotilla")
	}

	viper.SetEnvPrefix("flotilla")
	viper.AutomaticEnv() // read in environment variables that match
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	config, err = newConfig()
	if err != nil {
		logFatalln(err)
	}
	if config.Credential != "" {
		// the config file wins over ambient credentials from dev testing
		_ = os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", config.Credential)
	}
}
