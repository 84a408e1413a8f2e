package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/mentor/internal/app"
	"github.com/michaelbrown/mentor/internal/config"
	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/suggest"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Write and run scripts interactively",
	Long: `Start an interactive editor. Lines you type are collected into a script;
/run executes it and prints suggestions as soon as they are ready. Running
again before they arrive replaces the pending suggestions.

Examples:
  mentor repl
  mentor repl --provider gemini
  mentor repl --policy heuristic`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

const (
	promptEmpty    = "\033[36mjs>\033[0m "
	promptContinue = "\033[36m..>\033[0m "
)

type repl struct {
	cfg    *config.Config
	mentor *app.Mentor
	orch   *suggest.Orchestrator
	rl     *readline.Instance
	lines  []string
	last   *sandbox.Result
}

func runRepl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newMentor(cfg)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptEmpty,
		HistoryFile:     filepath.Join(os.TempDir(), "mentor_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	r := &repl{cfg: cfg, mentor: m, orch: m.NewOrchestrator(), rl: rl}
	defer r.orch.Close()

	// Suggestions can land while the user is typing; readline's writer
	// redraws the prompt underneath them.
	r.orch.OnPublish = func(gen uint64, list []suggest.Suggestion) {
		printSuggestions(rl.Stdout(), list)
	}

	fmt.Printf("Mentor - JavaScript playground\n")
	fmt.Printf("Suggestions: %s\n", m.Describe())
	fmt.Printf("Type code, then /run. /help for commands, /quit to exit\n\n")

	return r.loop()
}

func (r *repl) loop() error {
	for {
		input, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(r.lines) > 0 {
					r.reset()
					fmt.Println("(buffer cleared)")
					continue
				}
				fmt.Println("\nGoodbye!")
				return nil
			}
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(input), "/") {
			if quit := r.command(strings.TrimSpace(input)); quit {
				fmt.Println("Goodbye!")
				return nil
			}
			continue
		}

		r.lines = append(r.lines, input)
		r.rl.SetPrompt(promptContinue)
	}
}

func (r *repl) code() string {
	return strings.Join(r.lines, "\n")
}

func (r *repl) reset() {
	r.lines = nil
	r.last = nil
	r.rl.SetPrompt(promptEmpty)
}

// command handles a slash command and reports whether the loop should end.
func (r *repl) command(input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return true
	case "/run", "/r":
		r.run()
	case "/reset":
		r.reset()
		fmt.Println("Buffer cleared.")
	case "/show":
		if len(r.lines) == 0 {
			fmt.Println("(empty)")
		}
		for i, line := range r.lines {
			fmt.Printf("%s%3d%s  %s\n", colorGray, i+1, colorReset, line)
		}
	case "/save":
		title := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
		if title == "" {
			fmt.Println("Usage: /save <title>")
			break
		}
		if len(r.lines) == 0 {
			fmt.Println("Nothing to save.")
			break
		}
		if err := saveScript(context.Background(), r.cfg, title, r.code(), r.last); err != nil {
			fmt.Printf("%serror: %s%s\n", colorRed, err, colorReset)
		}
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /run           - Execute the buffer and suggest")
		fmt.Println("  /show          - Print the buffer with line numbers")
		fmt.Println("  /reset         - Clear the buffer")
		fmt.Println("  /save <title>  - Save the buffer as a script")
		fmt.Println("  /help          - Show this help")
		fmt.Println("  /quit          - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try /help)\n\n", input)
	}
	return false
}

func (r *repl) run() {
	if len(r.lines) == 0 {
		fmt.Println("Nothing to run. Type some code first.")
		return
	}
	code := r.code()

	res := r.mentor.Engine.Execute(code)
	r.last = &res
	printResult(os.Stdout, res)

	r.orch.OnExecutionCompleted(code, res.Errors)
	if r.orch.Analyzing() {
		fmt.Printf("%sAnalyzing with %s...%s\n", colorGray, r.mentor.Describe(), colorReset)
	}
}
