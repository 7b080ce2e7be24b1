/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gopnp/InputParameters"
	"github.com/notargets/gopnp/fem"
	"github.com/notargets/gopnp/newton"
	"github.com/notargets/gopnp/output"
	"github.com/notargets/gopnp/pnp"
	"github.com/notargets/gopnp/utils"
)

// PNPCmd represents the pnp command
var PNPCmd = &cobra.Command{
	Use:   "pnp",
	Short: "Adaptive Poisson-Nernst-Planck solve of a benchmark problem",
	Long: `
Solves a Poisson-Nernst-Planck benchmark on an interval, refining the mesh until
the error indicator is below tolerance or the refinement budget is spent.
Writes history.csv and PNG snapshots of every field into the output directory.

gopnp pnp -I input.yaml -o results`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip *InputParameters.PNPParameters
		)
		if ip, err = processInput(); err != nil {
			return
		}
		var (
			quiet  = viper.GetBool("pnp.quiet")
			logOut io.Writer
		)
		logOut = os.Stdout
		if quiet {
			logOut = io.Discard
		} else {
			ip.Print()
		}
		switch viper.GetString("pnp.profile") {
		case "":
		case "cpu":
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(ip.Output.Directory)).Stop()
		case "mem":
			defer profile.Start(profile.MemProfile, profile.ProfilePath(ip.Output.Directory)).Stop()
		default:
			return fmt.Errorf("unknown profile %q, use cpu or mem", viper.GetString("pnp.profile"))
		}
		_, err = RunPNP(cmd.Context(), ip, log.New(logOut, "", 0))
		return
	},
}

func init() {
	rootCmd.AddCommand(PNPCmd)
	PNPCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Benchmark\n\t- Species\n\t- Newton and refinement tolerances")
	PNPCmd.Flags().StringP("outputDir", "o", "", "directory for history.csv and snapshots, overrides the input file")
	PNPCmd.Flags().StringP("benchmark", "b", "", "benchmark to run: manufactured, linear or equilibrium")
	PNPCmd.Flags().IntP("cells", "k", 0, "number of cells of the initial mesh")
	PNPCmd.Flags().Bool("eafe", false, "use the edge averaged Jacobian for the Nernst-Planck blocks")
	PNPCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")
	PNPCmd.Flags().String("profile", "", "write a cpu or mem profile into the output directory")
	for _, name := range []string{"inputConditionsFile", "outputDir", "benchmark", "cells", "eafe", "quiet", "profile"} {
		_ = viper.BindPFlag("pnp."+name, PNPCmd.Flags().Lookup(name))
	}
}

// processInput reads the parameter file when one is given and applies the
// flag and config file overrides.
func processInput() (ip *InputParameters.PNPParameters, err error) {
	if file := viper.GetString("pnp.inputConditionsFile"); len(file) != 0 {
		if ip, err = InputParameters.ReadFile(file); err != nil {
			return
		}
	} else {
		ip = InputParameters.NewPNPParameters()
		fmt.Printf("no input parameters file (-I, --inputConditionsFile), running defaults\nExample File:%s\n",
			InputParameters.ExampleFile)
	}
	if viper.IsSet("pnp.outputDir") {
		ip.Output.Directory = viper.GetString("pnp.outputDir")
	}
	if viper.IsSet("pnp.benchmark") {
		ip.Benchmark = viper.GetString("pnp.benchmark")
	}
	if viper.IsSet("pnp.cells") {
		ip.InitialCells = viper.GetInt("pnp.cells")
	}
	if viper.IsSet("pnp.eafe") {
		ip.UseEAFE = viper.GetBool("pnp.eafe")
	}
	err = ip.Validate()
	return
}

// RunPNP runs the adaptive driver and writes its outputs. The returned error
// wraps the solver failure, or ErrNotConverged when only the final solve
// missed its tolerance.
func RunPNP(ctx context.Context, ip *InputParameters.PNPParameters, logger *log.Logger) (rep pnp.Report, err error) {
	var (
		par    pnp.Params
		d      *pnp.Driver
		snaps  *output.Snapshots
		hist   *output.HistoryWriter
		f      *os.File
		outErr error
	)
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if par, err = ip.ToPNP(); err != nil {
		return
	}
	if d, err = pnp.NewDriver(par); err != nil {
		return
	}
	d.Logger = logger
	if snaps, err = output.NewSnapshots(ip.Output.Directory); err != nil {
		return
	}
	if f, err = os.Create(filepath.Join(ip.Output.Directory, "history.csv")); err != nil {
		return
	}
	defer f.Close()
	if hist, err = output.NewHistoryWriter(f); err != nil {
		return
	}
	keep := func(e error) {
		if e != nil && outErr == nil {
			outErr = e
		}
	}
	names := par.Coefficients.FieldNames()
	fields := func(p *pnp.Problem, F []*fem.Function, withCharge bool) (out []output.Field) {
		for j, fn := range F {
			out = append(out, output.Field{Name: names[j], F: fn, Exact: d.Benchmark.ExactField(j)})
		}
		if withCharge {
			out = append(out, output.Field{Name: "charge", F: p.TotalCharge(F)})
		}
		return
	}
	if ip.Output.IterationSnapshots {
		d.OnIteration = append(d.OnIteration, func(stage pnp.Stage, st *newton.Status, p *pnp.Problem, F []*fem.Function) {
			_, e := snaps.Write(stage, st.Iteration, fields(p, F, false))
			keep(e)
		})
	}
	d.OnLevel = append(d.OnLevel, func(rec pnp.LevelRecord, p *pnp.Problem, F []*fem.Function) {
		keep(hist.Write(rec))
		if ip.Output.Snapshots {
			_, e := snaps.Write(rec.Stage, -1, fields(p, F, true))
			keep(e)
		}
	})
	if utils.NetlibEnabled {
		logger.Printf("dense factorizations use netlib BLAS\n")
	}
	rep, err = d.Run(ctx)
	logger.Printf("%s\n", utils.GetMemUsage())
	for _, rec := range rep.Levels {
		var at string
		if rec.Step > 0 {
			at = fmt.Sprintf("step %d, t = %8.5f, ", rec.Step, rec.Time)
		}
		logger.Printf("%slevel %d: %d cells, %d Newton iterations (%s), L2 error %8.5e, H1 error %8.5e, energy %8.5e\n",
			at, rec.Level, rec.Cells, rec.NewtonIterations, rec.State, rec.L2Error, rec.H1Error, rec.Energy)
	}
	switch {
	case err != nil:
		if n := len(rep.Levels); n != 0 {
			// the failing level never reached the level hooks
			keep(hist.Write(rep.Levels[n-1]))
		}
	case outErr != nil:
		err = fmt.Errorf("writing output: %w", outErr)
	case !rep.Converged():
		err = ErrNotConverged
	}
	return
}
