package cmd

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/control-sim/control-sim/engine"
	"github.com/control-sim/control-sim/engine/checkpoint"
	"github.com/control-sim/control-sim/engine/netsim"
	"github.com/control-sim/control-sim/engine/trace"
)

var (
	// CLI flags for the control loop
	configPath     string // engine configuration YAML
	cycles         int    // number of real control cycles to run
	seed           int64  // master seed for the reference network
	strategyName   string // override the bundle's search strategy
	workers        int    // override the bundle's grid worker count
	logLevel       string // log verbosity level
	historyPath    string // JSONL search-history output path
	checkpointPath string // checkpoint file to load/save cross-cycle state
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "controlsim",
	Short: "Control-allocation optimization over a simulated network",
}

// runCmd executes the control loop using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop against the reference network",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if configPath == "" {
			logrus.Fatalf("No engine config provided. Exiting.")
		}
		bundle, err := engine.LoadBundle(configPath)
		if err != nil {
			logrus.Fatalf("Loading engine config: %v", err)
		}
		if strategyName != "" {
			bundle.Search.Strategy = strategyName
		}
		if workers > 0 {
			bundle.Search.Workers = workers
		}
		if err := bundle.Validate(); err != nil {
			logrus.Fatalf("Invalid engine config: %v", err)
		}

		signals, err := bundle.BuildSignals()
		if err != nil {
			logrus.Fatalf("Building signals: %v", err)
		}
		strategy, err := bundle.BuildStrategy()
		if err != nil {
			logrus.Fatalf("Building strategy: %v", err)
		}

		netCfg := netsim.DefaultConfig()
		netCfg.Seed = seed
		network, err := netsim.New(netCfg, signals)
		if err != nil {
			logrus.Fatalf("Building reference network: %v", err)
		}

		driver, err := engine.NewDriver(network, signals, strategy, bundle.BuildDriverConfig())
		if err != nil {
			logrus.Fatalf("Building driver: %v", err)
		}
		if checkpointPath != "" {
			if st, loadErr := checkpoint.Load(checkpointPath); loadErr == nil {
				if restoreErr := driver.Restore(st); restoreErr != nil {
					logrus.Fatalf("Restoring checkpoint: %v", restoreErr)
				}
				logrus.Infof("Restored checkpoint from %s (saved %s)", checkpointPath, st.SavedAt)
			}
		}

		logrus.Infof("Starting control loop: %d cycles, %s candidates per cycle, strategy=%s",
			cycles, humanize.Comma(int64(driver.Space().Size())), bundle.Search.Strategy)

		startTime := time.Now()
		real := engine.NewRealContext("")
		for i := 0; i < cycles; i++ {
			// The committed policy governs the next real execution.
			policy, cycleErr := driver.RunControlCycle(context.Background(), real)
			if cycleErr != nil {
				logrus.Fatalf("Control cycle failed: %v", cycleErr)
			}
			if execErr := network.Execute(context.Background(), real, nil); execErr != nil {
				logrus.Fatalf("Real execution failed: %v", execErr)
			}
			logrus.Debugf("cycle %d committed %s", i+1, policy)
		}

		if historyPath != "" {
			writeHistory(driver.Trace())
		}
		if checkpointPath != "" {
			if saveErr := checkpoint.Save(checkpointPath, driver.Checkpoint()); saveErr != nil {
				logrus.Fatalf("Saving checkpoint: %v", saveErr)
			}
		}

		summary := trace.Summarize(driver.Trace())
		logrus.Infof("Control loop complete in %s: %s candidates evaluated over %d cycles (best net value %.6g, %d failed)",
			time.Since(startTime).Round(time.Millisecond),
			humanize.Comma(int64(summary.Candidates)), summary.Cycles, summary.BestValue, summary.Failed)
	},
}

func writeHistory(st *trace.SearchTrace) {
	f, err := os.Create(historyPath)
	if err != nil {
		logrus.Fatalf("Creating history file %s: %v", historyPath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logrus.Fatalf("Closing history file %s: %v", historyPath, closeErr)
		}
	}()
	if err := st.WriteJSONL(f); err != nil {
		logrus.Fatalf("Writing history file %s: %v", historyPath, err)
	}
	logrus.Infof("Wrote %d history records to %s", len(st.Records), historyPath)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to engine configuration YAML")
	runCmd.Flags().IntVar(&cycles, "cycles", 1, "Number of real control cycles to run")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for the reference network")
	runCmd.Flags().StringVar(&strategyName, "strategy", "", "Override search strategy (grid or gradient)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Override grid search worker count")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log verbosity (debug, info, warn, error)")
	runCmd.Flags().StringVar(&historyPath, "history-out", "", "Write search history as JSONL to this path")
	runCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Load/save cross-cycle state at this path")
	rootCmd.AddCommand(runCmd)
}
