package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/scholastiq/questpipe/pkg/adapter"
	"github.com/scholastiq/questpipe/pkg/config"
	"github.com/scholastiq/questpipe/pkg/history"
	"github.com/scholastiq/questpipe/pkg/pipeline"
	"github.com/scholastiq/questpipe/pkg/prompt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	promptsFile string
	stagesFile  string
	modeFlag    string
	verbose     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "questpipe",
		Short: "Staged question generation pipeline",
		Long: `Questpipe generates exam questions through a four-stage pipeline:
	scenario, question, solution, and analysis. Each stage feeds its JSON
	output into the next stage's prompt, and every run is costed per token.`,
	}

	rootCmd.PersistentFlags().StringVar(&promptsFile, "prompts", "configs/prompts.yaml", "path to prompt templates file")
	rootCmd.PersistentFlags().StringVar(&stagesFile, "stages", "", "path to stage configuration file (built-in defaults if empty)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "pipeline mode override")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (func(format string, args ...any), func()) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return func(string, ...any) {}, func() {}
	}
	sugar := logger.Sugar()
	return sugar.Infof, func() { _ = logger.Sync() }
}

func generateCmd() *cobra.Command {
	var (
		grade     string
		subject   string
		chapter   string
		topic     string
		notes     string
		files     []string
		outFile   string
		runLogDir string
		noHistory bool
		uniform   string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one question document",
		Long: `Runs the staged pipeline for a single grade/subject/topic and writes
	the resulting document to stdout or --out. Attached files are passed to
	every stage that supports them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" {
				return fmt.Errorf("--topic is required")
			}

			logf, flush := newLogger()
			defer flush()

			runner, err := buildRunner(logf, runLogDir, uniform)
			if err != nil {
				return err
			}

			attachments, err := loadAttachments(files)
			if err != nil {
				return err
			}

			pctx := prompt.Context{
				Grade:           grade,
				Subject:         subject,
				Chapter:         chapter,
				Topic:           topic,
				AdditionalNotes: notes,
				Attachments:     attachments,
			}

			run, err := runner.Run(context.Background(), pctx)
			if err != nil {
				if run != nil {
					logf("run %s failed at stage %s after %d completed stages (cost so far $%.4f)",
						run.ID, run.FailedStage, run.StagesCompleted(), run.TotalCost)
				}
				return err
			}

			output, err := encodeRunOutput(run)
			if err != nil {
				return err
			}

			if !noHistory {
				if err := saveHistory(run, pctx, output); err != nil {
					logf("history: %v", err)
				}
			}

			fmt.Fprintf(os.Stderr, "Run %s complete: %d stages, %d in / %d out tokens, $%.4f\n",
				run.ID, run.StagesCompleted(), run.TotalInputTokens, run.TotalOutputTokens, run.TotalCost)

			if outFile != "" {
				return os.WriteFile(outFile, output, 0644)
			}
			fmt.Println(string(output))
			return nil
		},
	}

	cmd.Flags().StringVar(&grade, "grade", "", "grade level")
	cmd.Flags().StringVar(&subject, "subject", "", "subject name")
	cmd.Flags().StringVar(&chapter, "chapter", "", "chapter name")
	cmd.Flags().StringVar(&topic, "topic", "", "topic to generate for (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "additional instructions for the scenario stage")
	cmd.Flags().StringArrayVar(&files, "file", nil, "attach a PDF or image (repeatable)")
	cmd.Flags().StringVar(&outFile, "out", "", "write the document to a file instead of stdout")
	cmd.Flags().StringVar(&runLogDir, "run-log", "", "write per-stage run evidence under this directory")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip saving the run to history")
	cmd.Flags().StringVar(&uniform, "model", "", "use one model for every stage")

	return cmd
}

// batchItem is one entry in a batch input file.
type batchItem struct {
	Grade           string `json:"grade"`
	Subject         string `json:"subject"`
	Chapter         string `json:"chapter"`
	Topic           string `json:"topic"`
	AdditionalNotes string `json:"additional_notes"`
}

func batchCmd() *cobra.Command {
	var (
		inputFile string
		outDir    string
		parallel  int
		uniform   string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate documents for a batch of topics",
		Long: `Reads a JSON array of items ({"grade", "subject", "chapter", "topic",
	"additional_notes"}) and runs the pipeline for each, bounded by
	--parallel. Failed items are reported without stopping the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputFile == "" {
				return fmt.Errorf("--file is required")
			}

			data, err := os.ReadFile(inputFile)
			if err != nil {
				return err
			}
			var items []batchItem
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("batch file %s: %w", inputFile, err)
			}
			if len(items) == 0 {
				return fmt.Errorf("batch file %s: no items", inputFile)
			}

			logf, flush := newLogger()
			defer flush()

			runner, err := buildRunner(logf, "", uniform)
			if err != nil {
				return err
			}

			contexts := make([]prompt.Context, len(items))
			for i, item := range items {
				contexts[i] = prompt.Context{
					Grade:           item.Grade,
					Subject:         item.Subject,
					Chapter:         item.Chapter,
					Topic:           item.Topic,
					AdditionalNotes: item.AdditionalNotes,
				}
			}

			results, err := pipeline.RunBatch(context.Background(), runner, contexts, parallel)
			if err != nil {
				return err
			}

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0755); err != nil {
					return err
				}
			}

			failed := 0
			var totalCost float64
			for i, result := range results {
				if result.Err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "item %d (%s): %v\n", i, items[i].Topic, result.Err)
					continue
				}
				totalCost += result.Run.TotalCost

				output, err := encodeRunOutput(result.Run)
				if err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "item %d (%s): %v\n", i, items[i].Topic, err)
					continue
				}
				if err := saveHistory(result.Run, contexts[i], output); err != nil {
					logf("history: %v", err)
				}
				if outDir != "" {
					path := filepath.Join(outDir, fmt.Sprintf("%s.json", result.Run.ID))
					if err := os.WriteFile(path, output, 0644); err != nil {
						return err
					}
				}
			}

			fmt.Fprintf(os.Stderr, "Batch complete: %d ok, %d failed, $%.4f total\n",
				len(results)-failed, failed, totalCost)
			if failed > 0 {
				return fmt.Errorf("%d of %d items failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "JSON batch file (required)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory for per-item output documents")
	cmd.Flags().IntVar(&parallel, "parallel", 3, "max runs in flight")
	cmd.Flags().StringVar(&uniform, "model", "", "use one model for every stage")

	return cmd
}

func stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "Show the resolved per-stage model configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadStageTable()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tADAPTER\tMODEL\tTEMP\tTHINKING")
			for _, name := range []string{
				prompt.TemplateScenario,
				prompt.TemplateQuestion,
				prompt.TemplateSolution,
				prompt.TemplateAnalysis,
			} {
				resolved, err := table.ForStage(name)
				if err != nil {
					return err
				}
				thinking := string(resolved.ThinkingLevel)
				if thinking == "" {
					thinking = "off"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\n",
					name, resolved.Adapter, resolved.Model, resolved.Temperature, thinking)
			}
			return w.Flush()
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List providers, their models, and key status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			adapters, err := createAdapters(cfg)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(adapters))
			for name := range adapters {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, name := range names {
				status := "ready"
				if !cfg.HasAdapter(name) && name != "mock" {
					status = "no key"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(adapters[name].Models(), ", "), status)
			}
			return w.Flush()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate prompt templates and stage configuration",
		Long:  "Checks the prompt and stage files without calling any provider.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := prompt.LoadStore(promptsFile); err != nil {
				return err
			}
			table, err := loadStageTable()
			if err != nil {
				return err
			}
			for _, name := range []string{
				prompt.TemplateScenario,
				prompt.TemplateQuestion,
				prompt.TemplateSolution,
				prompt.TemplateAnalysis,
			} {
				if _, err := table.ForStage(name); err != nil {
					return err
				}
			}
			fmt.Println("Configuration is valid.")
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var basePath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved generation runs",
	}
	cmd.PersistentFlags().StringVar(&basePath, "dir", "", "history directory (default ~/.questpipe/history)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore(basePath, 0)
			if err != nil {
				return err
			}
			runs, err := store.ListRuns()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tWHEN\tMODE\tTOPIC\tSTAGES\tCOST")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t$%.4f\n",
					run.RunID, run.Timestamp.Format(time.RFC3339), run.Mode,
					run.Topic, run.StagesCompleted, run.TotalCost)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [run-id]",
		Short: "Print a saved run's output document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore(basePath, 0)
			if err != nil {
				return err
			}
			_, output, err := store.LoadRun(args[0])
			if err != nil {
				return err
			}
			fmt.Println(string(output))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [run-id]",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore(basePath, 0)
			if err != nil {
				return err
			}
			return store.DeleteRun(args[0])
		},
	})

	return cmd
}

func buildRunner(logf func(format string, args ...any), runLogDir, uniformModel string) (*pipeline.Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if modeFlag != "" {
		cfg.Mode = modeFlag
	}

	adapters, err := createAdapters(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapters: %w", err)
	}

	store, err := prompt.LoadStore(promptsFile)
	if err != nil {
		return nil, err
	}

	table, err := loadStageTable()
	if err != nil {
		return nil, err
	}
	if uniformModel != "" {
		table.UniformModel = uniformModel
	}

	retry := table.Retry.Policy()
	runner := &pipeline.Runner{
		Adapters:  adapters,
		Prompts:   store,
		Stages:    table,
		Retry:     retry,
		Mode:      cfg.Mode,
		Logger:    logf,
		RunLogDir: runLogDir,
	}
	if cfg.Mode != config.ModeScenarioFirst {
		runner.Legacy = &pipeline.SingleCall{
			Adapters: adapters,
			Prompts:  store,
			Stages:   table,
			Retry:    retry,
			Mode:     cfg.Mode,
		}
	}
	return runner, nil
}

func loadStageTable() (*config.StageTable, error) {
	if stagesFile == "" {
		return config.DefaultStageTable(), nil
	}
	return config.LoadStageTable(stagesFile)
}

func createAdapters(cfg *config.Config) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if cfg.DeepSeekAPIKey != "" {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create deepseek adapter: %w", err)
		}
		adapters["deepseek"] = a
	}

	adapters["mock"] = adapter.NewMockAdapter()

	return adapters, nil
}

// encodeRunOutput renders the run's final artifact. Legacy runs emit their
// single parsed payload with run metadata attached.
func encodeRunOutput(run *pipeline.Run) ([]byte, error) {
	if run.Mode != config.ModeScenarioFirst && len(run.Stages) == 1 {
		return json.MarshalIndent(map[string]any{
			"document": run.Stages[0].Data,
			"_pipeline_metadata": map[string]any{
				"mode":             run.Mode,
				"stages_completed": run.StagesCompleted(),
				"total_tokens": map[string]int{
					"input":  run.TotalInputTokens,
					"output": run.TotalOutputTokens,
				},
				"total_cost": run.TotalCost,
			},
		}, "", "  ")
	}

	doc, err := run.Document()
	if err != nil {
		return nil, err
	}
	return doc.Encode()
}

func saveHistory(run *pipeline.Run, pctx prompt.Context, output []byte) error {
	store, err := history.NewStore("", 0)
	if err != nil {
		return err
	}
	_, err = store.SaveRun(history.RunMeta{
		Timestamp:       run.StartedAt,
		Mode:            run.Mode,
		Grade:           pctx.Grade,
		Subject:         pctx.Subject,
		Chapter:         pctx.Chapter,
		Topic:           pctx.Topic,
		StagesCompleted: run.StagesCompleted(),
		TotalCost:       run.TotalCost,
	}, output)
	return err
}

var mimeByExt = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

func loadAttachments(paths []string) ([]adapter.Attachment, error) {
	var attachments []adapter.Attachment
	for _, path := range paths {
		mime, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil, fmt.Errorf("unsupported attachment type: %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, adapter.Attachment{
			Filename: filepath.Base(path),
			MIMEType: mime,
			Data:     data,
		})
	}
	return attachments, nil
}
