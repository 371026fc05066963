package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"BookWormAI/app/configs"
	"BookWormAI/app/ingest"
	"BookWormAI/app/models"
	"BookWormAI/app/rag"
	"BookWormAI/app/restclient"
	"BookWormAI/app/store"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("📄 Loaded environment from .env")
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(ctx, os.Args[2:])
	case "query":
		err = runQuery(ctx, os.Args[2:])
	case "stats":
		err = runStats(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  bookworm ingest -dir DIR [-skip-existing] [-max N] [-config FILE]
  bookworm query [-class X] [-subject Y] [-language Z] [-top-k K] [-temperature T] [-interactive] [-config FILE] "question"
  bookworm stats [-config FILE]`)
}

type appContext struct {
	cfg   *configs.Config
	orch  *rag.Orchestrator
	close func()
}

// buildApp wires store, model client and orchestrator once per command and
// guarantees the store is released on every exit path via close.
func buildApp(ctx context.Context, configPath string) (*appContext, error) {
	cfg, err := configs.Load(configPath)
	if err != nil {
		return nil, err
	}

	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path, cfg.Store.Dimension)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { st.Close() }}

	rc := restclient.NewRestClient(cfg.Model.BaseURL, map[string]string{"Authorization": "Bearer " + key})
	model := models.NewLLMClient(rc, cfg.Model.GenerationModel, cfg.Model.EmbeddingsModel,
		cfg.Store.Dimension, cfg.Model.BatchSize)

	var engine rag.Engine = rag.NewBruteForce(st)
	var index rag.Index

	if cfg.Store.Backend == "qdrant" {
		qc := cfg.Store.Qdrant
		qx, err := rag.NewQdrantIndex(qc.Host, qc.Port, qc.Collection)
		if err != nil {
			st.Close()
			return nil, err
		}
		if err = qx.Init(ctx, cfg.Store.Dimension); err != nil {
			qx.Close()
			st.Close()
			return nil, err
		}
		engine, index = qx, qx
		closers = append(closers, func() { qx.Close() })
	}

	retry := rag.RetryPolicy{
		MaxAttempts: cfg.Ingest.MaxAttempts,
		BaseDelay:   rag.DefaultRetryPolicy().BaseDelay,
		MaxDelay:    rag.DefaultRetryPolicy().MaxDelay,
	}
	orch := rag.NewOrchestrator(st, model, engine,
		rag.NewAssembler(cfg.Retrieval.ContextChars), retry, cfg.Ingest.Workers)
	if index != nil {
		orch.SetIndex(index)
	}

	return &appContext{
		cfg:  cfg,
		orch: orch,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	dir := fs.String("dir", "", "directory of *.jsonl page files")
	skip := fs.Bool("skip-existing", true, "skip pages already present in the store")
	maxItems := fs.Int("max", 0, "cap on pages to process (0 = all)")
	fs.Parse(args)

	if *dir == "" {
		return fmt.Errorf("ingest: -dir is required")
	}

	app, err := buildApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer app.close()

	report, err := app.orch.Ingest(ctx, ingest.NewDirSource(*dir), rag.IngestOptions{
		SkipExisting: *skip,
		MaxItems:     *maxItems,
	})
	if report != nil {
		fmt.Printf("Run %s: %d ingested, %d skipped, %d failed of %d pages in %s\n",
			report.RunID, report.Ingested, report.Skipped, report.Failed, report.Total, report.Elapsed)
	}
	return err
}

func runQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	class := fs.String("class", "", "filter by class label (e.g. \"Class 7\")")
	subject := fs.String("subject", "", "filter by subject (e.g. Science)")
	language := fs.String("language", "", "filter by language (e.g. English)")
	topK := fs.Int("top-k", 0, "number of passages to retrieve (default from config)")
	temperature := fs.Float64("temperature", -1, "generation temperature 0..1 (default from config)")
	interactive := fs.Bool("interactive", false, "read questions from stdin until EOF")
	fs.Parse(args)

	app, err := buildApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer app.close()

	filters, err := store.ParseFilters(filterMap(*class, *subject, *language))
	if err != nil {
		return err
	}

	makeQuery := func(text string) rag.Query {
		q := rag.Query{Text: text, Filters: filters, TopK: *topK, Temperature: *temperature}
		if q.TopK <= 0 {
			q.TopK = app.cfg.Retrieval.TopK
		}
		if q.Temperature < 0 {
			q.Temperature = app.cfg.Retrieval.Temperature
		}
		return q
	}

	if *interactive {
		fmt.Println("Ask questions about the indexed books. Type 'quit' to stop.")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("\nQuestion: ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if text == "quit" || text == "exit" {
				return nil
			}
			answer, err := app.orch.Query(ctx, makeQuery(text))
			if answer == nil {
				return err
			}
			printAnswer(answer)
		}
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("query: no question given")
	}
	answer, err := app.orch.Query(ctx, makeQuery(question))
	if answer == nil {
		return err
	}
	printAnswer(answer)
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	app, err := buildApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer app.close()

	stats, err := app.orch.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Passages indexed: %d (dimension %d)\n\n%s", stats.TotalPassages, stats.Dimension, stats.CorpusTree)
	return nil
}

func filterMap(class, subject, language string) map[string]string {
	raw := make(map[string]string)
	if class != "" {
		raw["class_label"] = class
	}
	if subject != "" {
		raw["subject"] = subject
	}
	if language != "" {
		raw["language"] = language
	}
	return raw
}

func printAnswer(answer *rag.Answer) {
	line := strings.Repeat("=", 60)
	fmt.Printf("\n%s\nAnswer:\n%s\n%s\n", line, line, answer.Text)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Printf("\nSources:\n")
	for i, src := range answer.Sources {
		fmt.Printf("%d. %s - %s - %s (%s), Page %d\n",
			i+1, src.ClassLabel, src.Subject, src.BookID, src.Language, src.PageNumber)
	}
}
