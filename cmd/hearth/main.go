// Hearth CLI - runs demonstration workloads on the hearth runtime
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/hearth/config"
	"github.com/chazu/hearth/vm"

	_ "github.com/tliron/commonlog/simple"
)

var (
	configDir string
	verbosity int
)

func main() {
	vm.SetArgs(os.Args)

	root := &cobra.Command{
		Use:           "hearth",
		Short:         "Hearth runtime tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory to search upwards for hearth.toml")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	root.AddCommand(newRunCommand(), newInfoCommand(), newEncodeCommand(), newDecodeCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig finds hearth.toml, falling back to defaults, and configures
// logging from it. Command-line verbosity adds to the file's setting.
func loadConfig() (*config.Config, error) {
	c, err := config.FindAndLoad(configDir)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = config.Default()
	}

	var path *string
	if c.Log.Path != "" {
		path = &c.Log.Path
	}
	commonlog.Configure(c.Log.Verbosity+verbosity, path)
	return c, nil
}
