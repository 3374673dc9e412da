package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/nnx/stride"
	"github.com/LynnColeArt/nnx/task"
)

func newImageCmd(g *globals) *cobra.Command {
	var (
		conv  convFlags
		raw   bool
		tiles bool
	)
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Build a job and print its register image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.profile()
			if err != nil {
				return err
			}
			cfg, err := conv.config()
			if err != nil {
				return err
			}
			d, err := task.Build(p, cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printImage(out, d.Registers(), raw)
			if tiles && d.Stride() == 2 {
				geo, err := stride.GeometryFor(p, cfg)
				if err != nil {
					return err
				}
				printTiles(out, stride.Plan(geo, d.Data.InfeatAddr, d.Data.OutfeatAddr, d.Data.Padding))
			}
			return nil
		},
	}
	conv.register(cmd.Flags())
	cmd.Flags().BoolVar(&raw, "raw", false, "print bare hex words")
	cmd.Flags().BoolVar(&tiles, "tiles", false, "print the tile plan of a stride 2 job")
	return cmd
}

func printImage(out io.Writer, words []uint32, raw bool) {
	if raw {
		for _, w := range words {
			fmt.Fprintf(out, "%08x\n", w)
		}
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, w := range words {
		fmt.Fprintf(tw, "%2d\t%s\t0x%08x\n", i, task.RegisterNames[i], w)
	}
	tw.Flush()
}

func printTiles(out io.Writer, tiles []stride.Tile) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TILE\tINPUT\tOUTPUT\tPADDING")
	for _, t := range tiles {
		fmt.Fprintf(tw, "%d,%d\t0x%08x\t0x%08x\t0x%08x\n", t.I, t.J, t.InputAddr, t.OutputAddr, t.Padding)
	}
	tw.Flush()
}
