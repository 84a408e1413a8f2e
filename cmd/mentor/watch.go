package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/mentor/internal/suggest"
)

var debounceFlag time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-run a script every time it is saved",
	Long: `Watch a JavaScript file and run it on every save. Each run starts a new
suggestion cycle; if you save again before suggestions arrive, only the
newest run's suggestions are printed.

Examples:
  mentor watch practice.js
  mentor watch practice.js --policy remote`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&debounceFlag, "debounce", 150*time.Millisecond, "Wait this long after the last write before running")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newMentor(cfg)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: many editors replace the file on save.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	orch := m.NewOrchestrator()
	defer orch.Close()
	orch.OnPublish = func(gen uint64, list []suggest.Suggestion) {
		fmt.Printf("%s--- suggestions for run #%d ---%s\n", colorGray, gen, colorReset)
		printSuggestions(os.Stdout, list)
	}

	runOnce := func() {
		code, err := os.ReadFile(path)
		if err != nil {
			log.Printf("reading %s: %v", path, err)
			return
		}
		res := m.Engine.Execute(string(code))
		fmt.Printf("\n%s=== %s @ %s ===%s\n", colorCyan, filepath.Base(path), time.Now().Format("15:04:05"), colorReset)
		printResult(os.Stdout, res)
		orch.OnExecutionCompleted(string(code), res.Errors)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s (suggestions: %s). Ctrl+C to stop.\n", path, m.Describe())
	runOnce()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopped.")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				pending = time.After(debounceFlag)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		case <-pending:
			pending = nil
			runOnce()
		}
	}
}
