package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rclone/layerfs/config/configfile"
	"github.com/rclone/layerfs/demux"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report demultiplexer downstream health, if the root layer is a demultiplexer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		f, err := configfile.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		root, err := buildStack(ctx, f)
		if err != nil {
			return fmt.Errorf("building stack: %w", err)
		}
		defer root.Destroy()

		d, ok := root.(*demux.Layer)
		if !ok {
			fmt.Println("root layer is not a demultiplexer; no per-downstream health to report")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENFORCED\tLAST ERROR")
		for _, s := range d.Status() {
			errText := "-"
			if s.LastErr != nil {
				errText = s.LastErr.Error()
			}
			fmt.Fprintf(w, "%s\t%v\t%s\n", s.Name, s.Enforced, errText)
		}
		return w.Flush()
	},
}
