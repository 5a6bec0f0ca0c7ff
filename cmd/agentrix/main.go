package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/agentrix-dev/agentrix"
	"github.com/agentrix-dev/agentrix/internal/observability"
	obsserver "github.com/agentrix-dev/agentrix/pkg/observability"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	configFile = flag.String("config", getEnv("CONFIG_FILE", "config/run.yaml"), "Run configuration file")
	inputDir   = flag.String("input", ".", "Directory with the files to analyze")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 8080), "Observability HTTP port")
	dryRun     = flag.Bool("dry-run", true, "Use the built-in echo invoker instead of a real provider")
)

func main() {
	flag.Parse()

	log.Printf("Starting Agentrix Orchestrator v%s", Version)
	log.Printf("Config: %s, Input: %s, HTTP Port: %d", *configFile, *inputDir, *httpPort)

	if err := observability.InitFromEnv(); err != nil {
		log.Printf("tracing init failed: %v", err)
	}
	obsserver.InitMetrics()

	srv := obsserver.NewServer(*httpPort)
	go func() {
		log.Printf("Starting HTTP server on :%d", *httpPort)
		if err := srv.Start(); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	files, err := scanInput(*inputDir)
	if err != nil {
		log.Fatalf("failed to scan input: %v", err)
	}
	log.Printf("Analyzing %d files", len(files))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down...")
		cancel()
	}()

	invoker := echoInvoker
	if !*dryRun {
		log.Fatal("no provider invoker built in; wire one and run with -dry-run=false")
	}

	result, err := agentrix.Run(ctx, *configFile, invoker, files)
	if err != nil {
		if result != nil {
			printSummary(result)
		}
		log.Fatalf("run failed: %v", err)
	}
	printSummary(result)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = observability.Shutdown(shutdownCtx)
}

// echoInvoker is the dry-run worker capability: it reports which files each
// worker saw without calling any provider.
func echoInvoker(ctx context.Context, agent agentrix.WorkerConfig, ec *agentrix.ExecutionContext) (*agentrix.Payload, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return &agentrix.Payload{
		Fields: map[string]any{
			"agent":    agent.Provider,
			"role":     agent.Role,
			"files":    ec.FilePaths(),
			"findings": []any{},
		},
	}, nil
}

// scanInput collects regular files under dir, skipping hidden entries.
func scanInput(dir string) ([]agentrix.File, error) {
	var files []agentrix.File
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		files = append(files, agentrix.File{Path: rel, Content: string(content)})
		return nil
	})
	return files, err
}

func printSummary(result *agentrix.RunResult) {
	summary := map[string]any{
		"analysis_id":   result.AnalysisID,
		"strategy":      result.Strategy,
		"successful":    result.Successful,
		"used_fallback": result.UsedFallback,
		"duration_ms":   result.Duration.Milliseconds(),
		"total_cost":    result.TotalCost,
		"slots":         slotSummary(result),
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Printf("failed to render summary: %v", err)
		return
	}
	fmt.Println(string(out))
}

func slotSummary(result *agentrix.RunResult) map[string]any {
	slots := map[string]any{}
	for slot, outcome := range result.Results {
		entry := map[string]any{
			"agent":       outcome.Agent.Provider,
			"role":        outcome.Agent.Role,
			"successful":  outcome.Successful,
			"duration_ms": outcome.Duration.Milliseconds(),
		}
		if outcome.Err != nil {
			entry["error"] = outcome.Err.Error()
		}
		slots[slot] = entry
	}
	return slots
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
