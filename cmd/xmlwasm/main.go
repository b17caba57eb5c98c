package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xmlwasm/expat/parser"
)

var rootCmd = &cobra.Command{
	Use:           "xmlwasm",
	Short:         "Stream XML parse events through a wasm build of expat",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("wasm", "libexpat.wasm", "path to the expat wasm module")
	pf.String("config", "", "config file (default searches ./xmlwasm.yaml)")
	pf.Bool("verbose", false, "debug logging")
	pf.String("encoding", "", "override document encoding detection")
	pf.String("separator", "", "namespace separator rune, or \"none\" to disable namespaces")
	pf.Bool("no-expand", false, "report internal entities raw instead of expanding them")
	pf.String("base", "", "base URI for resolving relative system identifiers")

	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(tuiCmd)
}

func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("XMLWASM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if cfg := viper.GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	viper.SetConfigName("xmlwasm")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

func parserOptions() parser.Options {
	return parser.Options{
		Encoding:                 viper.GetString("encoding"),
		Separator:                viper.GetString("separator"),
		NoExpandInternalEntities: viper.GetBool("no-expand"),
		Base:                     viper.GetString("base"),
	}
}

func loadWasm() ([]byte, error) {
	path := viper.GetString("wasm")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wasm module: %w", err)
	}
	return data, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
