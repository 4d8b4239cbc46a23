package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-autoprof/internal/config"
	"github.com/askiada/go-autoprof/pkg/pipeline/drawer"
)

func drawCmd(*rootFlags) *cobra.Command {
	var output, rankdir string

	cmd := &cobra.Command{
		Use:   "draw <config.yaml>",
		Short: "Write the configured sequence graph in the DOT language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			pipe, err := newPipeline(cfg)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "unable to create %s", output)
				}
				defer file.Close()
				out = file
			}

			hook := drawer.PipelineDrawer(drawer.NewDOTWriterDrawer(out, drawer.GraphAttribute("rankdir", rankdir)))
			err = hook.New(pipe.Sequences())
			if err != nil {
				return err
			}

			return hook.Finish(nil)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&rankdir, "rankdir", "LR", "graphviz layout direction (LR, TB, RL, BT)")

	return cmd
}
