package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/mentor/internal/app"
	"github.com/michaelbrown/mentor/internal/config"
	"github.com/michaelbrown/mentor/internal/storage"
	"github.com/michaelbrown/mentor/internal/storage/sqlite"
)

var (
	providerFlag string
	modelFlag    string
	policyFlag   string
	configFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "mentor",
	Short: "Mentor - run JavaScript and get hints, not answers",
	Long: `Mentor runs learner JavaScript in a sandbox and follows every run with
a few short suggestions: hints about the errors it hit and ideas for what to
learn next.

Suggestions come from an OpenAI-compatible model (Ollama, Gemini, OpenAI) when
one is configured, and from built-in heuristics otherwise.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "LLM provider for suggestions (overrides config)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Model to use (overrides config)")
	rootCmd.PersistentFlags().StringVar(&policyFlag, "policy", "", "Suggestion policy: auto, remote or heuristic")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./mentor.yaml or ~/.mentor/mentor.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadFile(configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newMentor(cfg *config.Config) (*app.Mentor, error) {
	return app.New(cfg, app.Options{
		Provider: providerFlag,
		Model:    modelFlag,
		Policy:   policyFlag,
	})
}

func openStore(cfg *config.Config) (storage.Store, error) {
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}
