package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/mentor/internal/config"
	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/storage"
)

var (
	noSuggestFlag bool
	saveFlag      string
)

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Run a script once and print suggestions",
	Long: `Execute a JavaScript file in the sandbox, print what it logged and threw,
then print one round of suggestions.

Examples:
  mentor run hello.js
  echo 'console.log(1+1)' | mentor run -
  mentor run loops.js --policy heuristic
  mentor run loops.js --save "for loops"`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&noSuggestFlag, "no-suggest", false, "Skip the suggestion cycle")
	runCmd.Flags().StringVar(&saveFlag, "save", "", "Save the script and its result under this title")
	rootCmd.AddCommand(runCmd)
}

func readScript(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newMentor(cfg)
	if err != nil {
		return err
	}

	code, err := readScript(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := m.Engine.Exec(ctx, sandbox.ExecOpts{Code: code})
	if err != nil {
		return err
	}
	printResult(os.Stdout, *res)

	if saveFlag != "" {
		if err := saveScript(ctx, cfg, saveFlag, code, res); err != nil {
			return err
		}
	}

	if noSuggestFlag {
		return nil
	}

	fmt.Fprintf(os.Stderr, "%sAnalyzing with %s...%s\n", colorGray, m.Describe(), colorReset)
	list, err := m.Suggest(ctx, "", code, res.Errors)
	if err != nil {
		return fmt.Errorf("suggestions: %w", err)
	}
	printSuggestions(os.Stdout, list)
	return nil
}

// saveScript stores code and, when given, the result of running it.
func saveScript(ctx context.Context, cfg *config.Config, title, code string, res *sandbox.Result) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sc := &storage.Script{
		ID:       uuid.New().String(),
		Title:    strings.TrimSpace(title),
		Code:     code,
		Language: storage.LanguageJavaScript,
	}
	if err := store.CreateScript(ctx, sc); err != nil {
		return err
	}
	if res != nil {
		if err := store.SaveRun(ctx, sc.ID, *res); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "Saved script %s (%s)\n", shortID(sc.ID), sc.Title)
	return nil
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
