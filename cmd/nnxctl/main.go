// Copyright ©2024 The nnx Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command nnxctl builds accelerator jobs, dumps their register images and
// runs them on the simulator or a UIO device.
package main

import (
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/nnx"
	"github.com/LynnColeArt/nnx/profile"
)

type globals struct {
	accel   string
	verbose bool
}

func (g *globals) profile() (*profile.Profile, error) {
	return profile.Lookup(g.accel)
}

// logger returns a logger writing to stderr when verbose, nil otherwise.
func (g *globals) logger(cmd *cobra.Command) *log.Logger {
	if !g.verbose {
		return nil
	}
	return log.New(cmd.ErrOrStderr(), "nnxctl: ", log.Lmicroseconds)
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "nnxctl",
		Short:         "Build and run NE16 / neureka accelerator jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.accel, "accel", "a", "ne16", "accelerator generation (ne16, neureka, neureka_v2; auto picks the cheapest for run)")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log queue activity to stderr")

	root.AddCommand(
		newImageCmd(g),
		newRunCmd(g),
		newWeightCmd(g),
		newProfilesCmd(),
		newVersionCmd(),
	)
	return root
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the supported accelerator generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printProfiles(cmd.OutOrStdout())
			return nil
		},
	}
}

func printProfiles(out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKI 1x1/3x3\tKO\tSUBTILE\tWORDS\tSTRIDE2")
	for _, p := range profile.All() {
		fmt.Fprintf(tw, "%s\t%d/%d\t%d\t%dx%d\t%d\t%v\n", p.Name(),
			p.InputChannelThroughput1x1, p.InputChannelThroughput3x3,
			p.OutputChannelThroughput, p.SubtileHeight, p.SubtileWidth,
			p.RegisterWords, p.SupportsStride2x2())
	}
	tw.Flush()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nnx version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), nnx.VersionString())
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.SetFlags(0)
		log.Fatalf("nnxctl: %v", err)
	}
}
