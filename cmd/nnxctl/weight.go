package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/weight"
)

func newWeightCmd(g *globals) *cobra.Command {
	var (
		shape     weight.Shape
		kernel    int
		bits      int
		depthwise bool
		decode    bool
		inPath    string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Convert raw (cout, cin, h, w) weights to the accelerator layout",
		Long: "Reads one unsigned byte per weight in (cout, cin, h, w) order and writes\n" +
			"the bit-plane layout of the selected accelerator. With --decode the\n" +
			"conversion runs backwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := g.profile()
			if err != nil {
				return err
			}
			shape.H, shape.W = kernel, kernel
			if depthwise {
				shape.Cin = 1
			}

			in, err := readInput(cmd, inPath)
			if err != nil {
				return err
			}
			var out []byte
			if decode {
				out, err = weight.Decode(p, shape, bits, depthwise, in)
			} else {
				out, err = weight.Encode(p, shape, bits, depthwise, in)
			}
			if err != nil {
				return err
			}
			return writeOutput(cmd, outPath, out)
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&shape.Cout, "cout", 32, "output channels")
	fs.IntVar(&shape.Cin, "cin", 32, "input channels (ignored for depthwise)")
	fs.IntVarP(&kernel, "kernel", "k", 3, "kernel size (1 or 3)")
	fs.IntVar(&bits, "bits", 8, "weight bits")
	fs.BoolVar(&depthwise, "depthwise", false, "depthwise weights")
	fs.BoolVarP(&decode, "decode", "d", false, "convert from the accelerator layout")
	fs.StringVarP(&inPath, "in", "i", "-", "input file, - for stdin")
	fs.StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nnx.NewInvalidArgError("weight", err.Error())
	}
	return b, nil
}

func writeOutput(cmd *cobra.Command, path string, b []byte) error {
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
