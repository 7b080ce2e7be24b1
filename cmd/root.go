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
	"errors"
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gopnp/linsolve"
	"github.com/notargets/gopnp/newton"
)

var cfgFile string

// ErrNotConverged marks a run whose solve on the final mesh stopped short
// of the Newton tolerance.
var ErrNotConverged = errors.New("final Newton solve did not converge")

const (
	ExitOK = iota
	ExitConfig
	ExitNewton
	ExitLinearSolver
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gopnp",
	Short: "Adaptive finite element solver for the Poisson-Nernst-Planck equations",
	Long: `
Solves the Poisson-Nernst-Planck system in log-density variables with a damped
Newton method and refines the mesh where an entropy or electric field error
indicator is large.

gopnp pnp -I input.yaml`,
}

// Execute adds all child commands to the root command and exits with a code
// describing the failure, if any.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Println(err)
	}
	os.Exit(ExitCode(err))
}

// ExitCode maps run errors to process exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, linsolve.ErrLinearSolverFailure):
		return ExitLinearSolver
	case errors.Is(err, newton.ErrBacktrackingExhausted),
		errors.Is(err, newton.ErrMaxIterationsReached),
		errors.Is(err, ErrNotConverged):
		return ExitNewton
	}
	return ExitConfig
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gopnp.yaml)")
}

// bindEnv maps nested keys onto environment variables, pnp.cells is read
// from GOPNP_PNP_CELLS.
func bindEnv() {
	viper.SetEnvPrefix("GOPNP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(ExitConfig)
		}
		// Search config in home directory with name ".gopnp" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".gopnp")
	}
	bindEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
