package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/persistence/redisstore"
)

// =============================================================================
// 🎞️ scenes 命令
// =============================================================================

func runScenes(args []string) {
	if len(args) < 1 {
		printScenesUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "validate":
		runScenesValidate(args[1:])
	case "import":
		runScenesImport(args[1:])
	case "help", "-h", "--help":
		printScenesUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown scenes subcommand: %s\n", args[0])
		printScenesUsage()
		os.Exit(1)
	}
}

func printScenesUsage() {
	fmt.Println(`Scene Authoring Commands

Usage:
  sceneflow scenes validate <file>
  sceneflow scenes import [--config <path>] <file>

validate compiles and checks every scene without touching a database.
import upserts the scenes into the configured store (store.type must be sql)
and asks running replicas to reload their catalog when redis is configured.`)
}

func runScenesValidate(args []string) {
	if len(args) != 1 {
		printScenesUsage()
		os.Exit(1)
	}
	scenes, err := scene.LoadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid scene file:\n%v\n", err)
		os.Exit(1)
	}
	printCatalogSummary(scenes)
}

func runScenesImport(args []string) {
	fs := flag.NewFlagSet("scenes import", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)
	if fs.NArg() != 1 {
		printScenesUsage()
		os.Exit(1)
	}
	file := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if cfg.Store.Type != "sql" {
		fmt.Fprintln(os.Stderr, "scenes import needs store.type=sql; memory stores import on serve")
		os.Exit(1)
	}

	logger := initLogger(cfg.Log).With(zap.String("command", "scenes import"))
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer b.close()

	n, err := importScenes(ctx, file, b.scenes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d scenes from %s\n", n, file)

	if b.cache != nil {
		if err := redisstore.NewInvalidator(b.cache, logger).Broadcast(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: catalog invalidation not broadcast: %v\n", err)
		}
	}
}

// importScenes 解析场景文件并逐个写入存储。文件整体校验通过后才会写入。
func importScenes(ctx context.Context, path string, store scene.Store) (int, error) {
	scenes, err := scene.LoadFile(path)
	if err != nil {
		return 0, err
	}
	for _, s := range scenes {
		if err := store.Save(ctx, s); err != nil {
			return 0, fmt.Errorf("failed to save scene %s: %w", s.Code, err)
		}
	}
	return len(scenes), nil
}

func printCatalogSummary(scenes []*scene.Scene) {
	byCategory := make(map[scene.Category]int)
	active := 0
	for _, s := range scenes {
		byCategory[s.Category]++
		if s.Active {
			active++
		}
	}
	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)

	fmt.Printf("OK: %d scenes (%d active)\n", len(scenes), active)
	for _, c := range cats {
		fmt.Printf("  %-16s %d\n", c, byCategory[scene.Category(c)])
	}
}
