// Package main provides the entry point for manifold, a command-line tool that
// embeds high-dimensional vectors into a low-dimensional space with UMAP. Input
// comes from a CSV or JSON file or from a Qdrant collection; the embedding is
// written to a file and can be browsed in a terminal viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/alDuncanson/manifold/config"
	"github.com/alDuncanson/manifold/dataimport"
	"github.com/alDuncanson/manifold/qdrant"
	"github.com/alDuncanson/manifold/tui"
	"github.com/alDuncanson/manifold/umap"
)

// version is set at build time via ldflags, defaults to "dev" for local builds
var version = "dev"

func main() {
	configPathFlag := flag.String("config", "", "path to a YAML config file")
	outputPathFlag := flag.String("out", "", "write the embedding to this .csv or .json file")
	viewFlag := flag.Bool("view", false, "browse the embedding in the terminal viewer")
	qdrantAddressFlag := flag.String("qdrant", "", "read vectors from the Qdrant instance at this gRPC address")
	collectionFlag := flag.String("collection", "", "Qdrant collection to read")
	showVersionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersionFlag {
		fmt.Println(version)
		return
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	appConfig, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *outputPathFlag != "" {
		appConfig.Output.Path = *outputPathFlag
	}
	if *viewFlag {
		appConfig.Output.View = true
	}
	if *qdrantAddressFlag != "" {
		appConfig.Qdrant.Address = *qdrantAddressFlag
	}
	if *collectionFlag != "" {
		appConfig.Qdrant.Collection = *collectionFlag
	}

	var datasetPath string
	if flag.NArg() > 0 {
		datasetPath = flag.Arg(0)
	}
	if datasetPath == "" && appConfig.Qdrant.Collection == "" {
		fmt.Fprintln(os.Stderr, "usage: manifold [flags] <vectors.csv|vectors.json>")
		fmt.Fprintln(os.Stderr, "   or: manifold [flags] -collection <name>")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig, datasetPath); err != nil {
		if errors.Is(err, umap.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Interrupted.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	var (
		appConfig *config.AppConfig
		err       error
	)
	if path != "" {
		appConfig, err = config.Load(path)
	} else {
		appConfig, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(appConfig); err != nil {
		return nil, err
	}
	return appConfig, nil
}

func run(ctx context.Context, appConfig *config.AppConfig, datasetPath string) error {
	logger, err := appConfig.Log.Logger()
	if err != nil {
		return err
	}

	var labels []string
	var vectors [][]float64
	if datasetPath != "" {
		labels, vectors, err = loadDataset(datasetPath)
	} else {
		labels, vectors, err = loadCollection(ctx, appConfig.Qdrant)
	}
	if err != nil {
		return err
	}

	engineConfig, err := appConfig.Engine.Umap(vectors)
	if err != nil {
		return err
	}
	engineConfig.Logger = logger

	fmt.Fprintf(os.Stderr, "Embedding %d vectors of %d dimensions...\n", len(vectors), len(vectors[0]))
	result, err := umap.Fit(ctx, vectors, engineConfig)
	if err != nil {
		return err
	}

	if appConfig.Output.Path != "" {
		if err := dataimport.SaveEmbedding(appConfig.Output.Path, labels, result.Rows()); err != nil {
			return fmt.Errorf("saving embedding: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", appConfig.Output.Path)
	}

	if !appConfig.Output.View {
		if appConfig.Output.Path == "" {
			return dataimport.WriteCSV(os.Stdout, labels, result.Rows())
		}
		return nil
	}

	points, summary := tui.FromResult(labels, engineConfig.Metric, len(vectors[0]), result)
	program := tea.NewProgram(tui.NewModel(points, summary, version), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}

func loadDataset(path string) ([]string, [][]float64, error) {
	dataset, err := dataimport.LoadVectors(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading dataset: %w", err)
	}
	return dataset.Labels, dataset.Vectors, nil
}

// loadCollection reads every vector from the configured Qdrant collection.
func loadCollection(ctx context.Context, qc config.QdrantConfig) ([]string, [][]float64, error) {
	if qc.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(qc.TimeoutSecs)*time.Second)
		defer cancel()
	}

	client, err := qdrant.NewClient(ctx, qc.Address, qc.Collection,
		qdrant.WithPageSize(qc.PageSize),
		qdrant.WithTextField(qc.TextField),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Make sure Qdrant is running: docker run -p 6333:6333 -p 6334:6334 qdrant/qdrant")
		return nil, nil, err
	}
	defer client.Close()

	points, err := client.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	return qdrant.Dataset(points)
}
