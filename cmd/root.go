package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/k3a-uw/caes-simulator/sim"
	"github.com/k3a-uw/caes-simulator/sim/output"
	"github.com/k3a-uw/caes-simulator/sim/stream"
)

var (
	// CLI flags
	configPath   string // Path to the system configuration XML
	inputPath    string // Optional path to the override document XML
	outputPath   string // Path the CSV result rows are written to
	scenarioPath string // Optional YAML scenario bundling the options above
	logLevel     string // Log verbosity level
	cacheSize    int    // Override stream cache capacity, in batches
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "caes-sim",
	Short: "Stock-and-flow system dynamics simulator",
}

// runCmd loads a system configuration and runs it to completion
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a system simulation to completion",
	Run: func(cmd *cobra.Command, args []string) {
		applyScenario(cmd)
		setupLogging()

		if configPath == "" {
			logrus.Fatalf("No system configuration provided; use --config or --scenario.")
		}

		model, err := sim.NewLoader(nil).LoadFile(configPath)
		if err != nil {
			logrus.Fatalf("Cannot load %s: %v", configPath, err)
		}

		outFile, err := os.Create(outputPath)
		if err != nil {
			logrus.Fatalf("Cannot create output file %s: %v", outputPath, err)
		}
		defer outFile.Close()

		clock, err := sim.NewClock(model, output.NewCSVWriter(outFile))
		if err != nil {
			logrus.Fatalf("Cannot start clock: %v", err)
		}

		if inputPath != "" {
			inFile, err := os.Open(inputPath)
			if err != nil {
				logrus.Fatalf("Cannot open override document %s: %v", inputPath, err)
			}
			defer inFile.Close()
			clock.SetOverrideSource(stream.NewReaderFrom(inFile, cacheSize))
		}

		startTime := time.Now()
		clock.Run()
		logrus.Infof("run %s: simulated %d steps in %v; results in %s",
			clock.RunID(), clock.CurrentStep(), time.Since(startTime), outputPath)
	},
}

// validateCmd loads a configuration and reports what it declares without
// simulating anything
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load a system configuration and report what it declares",
	Run: func(cmd *cobra.Command, args []string) {
		applyScenario(cmd)
		setupLogging()

		if configPath == "" {
			logrus.Fatalf("No system configuration provided; use --config or --scenario.")
		}

		model, err := sim.NewLoader(nil).LoadFile(configPath)
		if err != nil {
			logrus.Fatalf("Cannot load %s: %v", configPath, err)
		}

		var reservoirs, sourceSinks, flows, controls int
		for _, e := range model.Graph.Entities() {
			switch e.Kind() {
			case sim.KindReservoir:
				reservoirs++
			case sim.KindSourceSink:
				sourceSinks++
			case sim.KindFlow:
				flows++
			case sim.KindControl:
				controls++
			}
		}

		fmt.Printf("%s: valid\n", configPath)
		fmt.Printf("  time steps:   %d\n", model.TimeSteps)
		fmt.Printf("  reservoirs:   %d\n", reservoirs)
		fmt.Printf("  source-sinks: %d\n", sourceSinks)
		fmt.Printf("  controls:     %d\n", controls)
		fmt.Printf("  flows:        %d\n", flows)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging parses and applies the log level flag
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// applyScenario fills any flag the user did not set explicitly from the
// scenario file, when one is given.
func applyScenario(cmd *cobra.Command) {
	if scenarioPath == "" {
		return
	}
	sc, err := LoadScenario(scenarioPath)
	if err != nil {
		logrus.Fatalf("Cannot load scenario: %v", err)
	}
	flags := cmd.Flags()
	if !flags.Changed("config") && sc.Config != "" {
		configPath = sc.Config
	}
	if !flags.Changed("input") && sc.Input != "" {
		inputPath = sc.Input
	}
	if !flags.Changed("output") && sc.Output != "" {
		outputPath = sc.Output
	}
	if !flags.Changed("log") && sc.LogLevel != "" {
		logLevel = sc.LogLevel
	}
	if !flags.Changed("cache-size") && sc.CacheSize > 0 {
		cacheSize = sc.CacheSize
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Path to the system configuration XML")
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a YAML scenario file")
		c.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}

	runCmd.Flags().StringVar(&inputPath, "input", "", "Path to the override document XML (optional)")
	runCmd.Flags().StringVar(&outputPath, "output", "output.csv", "Path for the CSV result rows")
	runCmd.Flags().IntVar(&cacheSize, "cache-size", stream.DefaultCacheSize, "Override stream cache capacity, in batches")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
