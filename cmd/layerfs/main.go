// Command layerfs builds a layer stack from a declarative config file and
// runs a smoke-test operation against it, exercising the root layer exactly
// the way a library-preload shim, FUSE adapter, or networked storage server
// would (those front-ends are out of this module's scope; this binary
// stands in for them during manual testing). Grounded on rclone's cobra
// root-command idiom (cmd.Root / cmd.Execute) from cmd/cmd.go and the
// surviving torrent-backend command file for flag/subcommand shape.
package main

import (
	"fmt"
	"log/slog"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	_ "github.com/rclone/layerfs/blockcompress"
	_ "github.com/rclone/layerfs/demux"
	_ "github.com/rclone/layerfs/local"
	"github.com/rclone/layerfs/logging"
	_ "github.com/rclone/layerfs/readcache"
)

var (
	configPath string
	level      = logLevel(slog.LevelInfo)
)

var rootCmd = &cobra.Command{
	Use:   "layerfs",
	Short: "Compose and drive a layerfs layer stack",
	Long: `
layerfs builds a chain (or tree) of POSIX-style file-I/O interposition
layers from a declarative config file and exposes subcommands to exercise
the resulting root layer.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevel(slog.Level(level))
	},
}

func init() {
	home, _ := homedir.Dir()
	defaultConfig := ""
	if home != "" {
		defaultConfig = home + "/.config/layerfs/layerfs.conf"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to the layer-stack config file")
	rootCmd.PersistentFlags().VarP(&level, "log-level", "l", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
