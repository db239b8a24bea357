package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medailey/activitysim/sim"
	"github.com/medailey/activitysim/sim/models"
)

var (
	settingsPath string // Path to the run settings YAML
	logLevel     string // Log verbosity level
	seedOverride int64  // Overrides the settings seed when set
	chunkSize    int    // Overrides the settings chunk budget when >= 0
	resumeAfter  string // Overrides the settings resume target when set
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "activitysim",
	Short: "Activity-based travel demand simulation pipeline",
	Long: "Runs an ordered list of choice model steps over a synthetic population,\n" +
		"checkpointing the table store after each step and resuming after any\n" +
		"named checkpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level %q: %v", logLevel, err)
		}
		logrus.SetLevel(level)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		settings, err := LoadSettings(settingsPath)
		if err != nil {
			return err
		}
		cfg := settings.RunConfig()
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seedOverride
		}
		if cmd.Flags().Changed("chunk-size") {
			cfg.ChunkBudget = chunkSize
		}
		if cmd.Flags().Changed("resume-after") {
			cfg.ResumeAfter = resumeAfter
		}

		scenario := NewExampleScenario(settings.TimePeriods())
		pipe := sim.NewPipeline(cfg, scenario.Skims)

		mcfg := models.DefaultConfig()
		mcfg.Load = scenario.Load
		mcfg.Write = scenario.Write
		mcfg.WriteDict = scenario.WriteDict
		mcfg.Thresholds = settings.Thresholds()
		models.RegisterAll(pipe, mcfg)

		// Cancellation is honored between steps: an interrupt stops the
		// run before the next step, leaving the last checkpoint intact.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return pipe.Run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&settingsPath, "settings", "settings.yaml", "Path to run settings YAML")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Int64Var(&seedOverride, "seed", 0, "Master seed for choice draws (overrides settings)")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Interaction cell budget per chunk (overrides settings)")
	rootCmd.Flags().StringVar(&resumeAfter, "resume-after", "", "Resume after this checkpoint (overrides settings)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("run failed: %v", err)
	}
}
