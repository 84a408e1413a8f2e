package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/mentor/internal/storage"
)

var (
	queryFlag    string
	limitFlag    int
	titleFlag    string
	exportFormat string
	exportOutput string
	forceFlag    bool
)

var scriptsCmd = &cobra.Command{
	Use:     "scripts",
	Aliases: []string{"script", "s"},
	Short:   "Manage saved scripts",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved scripts",
	RunE:  runScriptsList,
}

var scriptsShowCmd = &cobra.Command{
	Use:   "show <script-id>",
	Short: "Show a script and its last run",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsShow,
}

var scriptsAddCmd = &cobra.Command{
	Use:   "add <file|->",
	Short: "Save a script file",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsAdd,
}

var scriptsRunCmd = &cobra.Command{
	Use:   "run <script-id>",
	Short: "Run a saved script, record the result and print suggestions",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsRun,
}

var scriptsDeleteCmd = &cobra.Command{
	Use:   "delete <script-id>",
	Short: "Delete a script",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsDelete,
}

var scriptsExportCmd = &cobra.Command{
	Use:   "export <script-id>",
	Short: "Export a script as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsExport,
}

func init() {
	rootCmd.AddCommand(scriptsCmd)
	scriptsCmd.AddCommand(scriptsListCmd, scriptsShowCmd, scriptsAddCmd, scriptsRunCmd, scriptsDeleteCmd, scriptsExportCmd)

	scriptsListCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Filter by title")
	scriptsListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max scripts to show")

	scriptsAddCmd.Flags().StringVar(&titleFlag, "title", "", "Title (default: file name)")

	scriptsExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	scriptsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	scriptsDeleteCmd.Flags().BoolVar(&forceFlag, "force", false, "Skip confirmation")
}

func withStore(fn func(ctx context.Context, store storage.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(context.Background(), store)
}

func runScriptsList(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store storage.Store) error {
		scripts, err := store.ListScripts(ctx, storage.ScriptListOptions{
			Query: queryFlag,
			Limit: limitFlag,
		})
		if err != nil {
			return err
		}

		if len(scripts) == 0 {
			fmt.Println("No scripts found.")
			return nil
		}

		// Header
		fmt.Printf("%-10s %-40s %-8s %s\n", "ID", "TITLE", "LINES", "UPDATED")
		fmt.Println(strings.Repeat("─", 72))

		for _, s := range scripts {
			title := s.Title
			if len(title) > 38 {
				title = title[:38] + ".."
			}
			if title == "" {
				title = "(untitled)"
			}
			lines := strings.Count(strings.TrimRight(s.Code, "\n"), "\n") + 1

			fmt.Printf("%-10s %-40s %-8d %s\n", shortID(s.ID), title, lines, timeAgo(s.UpdatedAt))
		}
		return nil
	})
}

func runScriptsShow(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store storage.Store) error {
		sc, err := store.GetScript(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Script:   %s\n", sc.ID)
		fmt.Printf("Title:    %s\n", sc.Title)
		fmt.Printf("Language: %s\n", sc.Language)
		fmt.Printf("Created:  %s\n", sc.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated:  %s\n", sc.UpdatedAt.Format(time.RFC3339))
		fmt.Println(strings.Repeat("─", 60))
		fmt.Println(strings.TrimRight(sc.Code, "\n"))

		run, err := store.LastRun(ctx, sc.ID)
		if err != nil {
			return err
		}
		if run != nil {
			fmt.Println(strings.Repeat("─", 60))
			fmt.Printf("Last run %s\n", timeAgo(run.Timestamp))
			printResult(os.Stdout, *run)
		}
		return nil
	})
}

func runScriptsAdd(cmd *cobra.Command, args []string) error {
	code, err := readScript(args[0])
	if err != nil {
		return err
	}
	title := titleFlag
	if title == "" {
		title = titleFromPath(args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return saveScript(context.Background(), cfg, title, code, nil)
}

func runScriptsRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := newMentor(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sc, err := store.GetScript(ctx, args[0])
	if err != nil {
		return err
	}

	res := m.Engine.Execute(sc.Code)
	printResult(os.Stdout, res)
	if err := store.SaveRun(ctx, sc.ID, res); err != nil {
		return err
	}

	list, err := m.Suggest(ctx, "", sc.Code, res.Errors)
	if err != nil {
		return fmt.Errorf("suggestions: %w", err)
	}
	printSuggestions(os.Stdout, list)
	return nil
}

func runScriptsDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store storage.Store) error {
		sc, err := store.GetScript(ctx, args[0])
		if err != nil {
			return err
		}

		if !forceFlag {
			title := sc.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("Delete script %s - %q? [y/N] ", shortID(sc.ID), title)
			var confirm string
			fmt.Scanln(&confirm)
			if strings.ToLower(confirm) != "y" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := store.DeleteScript(ctx, sc.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted script %s\n", shortID(sc.ID))
		return nil
	})
}

func runScriptsExport(cmd *cobra.Command, args []string) error {
	return withStore(func(ctx context.Context, store storage.Store) error {
		sc, err := store.GetScript(ctx, args[0])
		if err != nil {
			return err
		}

		run, err := store.LastRun(ctx, sc.ID)
		if err != nil {
			return err
		}

		var output string
		switch exportFormat {
		case "json":
			data, err := storage.ExportJSON(sc, run)
			if err != nil {
				return err
			}
			output = string(data)
		default:
			output = storage.ExportMarkdown(sc, run)
		}

		if exportOutput != "" {
			return os.WriteFile(exportOutput, []byte(output), 0o644)
		}

		fmt.Print(output)
		return nil
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
