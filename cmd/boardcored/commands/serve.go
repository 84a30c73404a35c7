package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexera/boardcore/internal/config"
	"github.com/lexera/boardcore/internal/include"
	"github.com/lexera/boardcore/internal/logging"
	"github.com/lexera/boardcore/internal/searchindex"
	"github.com/lexera/boardcore/internal/storage"
	"github.com/lexera/boardcore/internal/watcher"
)

var serveLog = logging.New("serve")

var serveCmd = &cobra.Command{
	Use:   "serve [board-dir]",
	Short: "Watch a directory of markdown boards and keep them in sync",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	boardDir := args[0]

	cfg, err := loadServeConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var idx *searchindex.Index
	if cfg.SearchIndexPath != "" {
		idx, err = searchindex.Open(cfg.SearchIndexPath)
		if err != nil {
			return fmt.Errorf("failed to open search index: %w", err)
		}
	}

	incMap := include.NewMap()
	watch, err := watcher.New(incMap, cfg.WatchDebounce)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	watch.Start()

	engine := storage.New(incMap, watch, idx, cfg.FingerprintTTL)
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boardPaths, err := discoverBoards(boardDir)
	if err != nil {
		return fmt.Errorf("failed to scan board directory: %w", err)
	}
	for _, p := range boardPaths {
		id, err := engine.AddBoard(ctx, p)
		if err != nil {
			serveLog.Warn("failed to add board", "path", p, "err", err)
			continue
		}
		serveLog.Info("board added", "board_id", id, "path", p)
	}

	go engine.RunWatchLoop(ctx)

	serveLog.Info("serving", "board_dir", boardDir, "boards", len(boardPaths), "log_level", cfg.Log.Level)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	serveLog.Info("shutting down")
	cancel()
	return watch.Stop()
}

func loadServeConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromPath(cfgFile)
	}
	return config.Load()
}

// discoverBoards walks dir for *.md files carrying a kanban-plugin: board
// frontmatter marker, without fully parsing them.
func discoverBoards(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			serveLog.Warn("failed to read candidate board file", "path", path, "err", err)
			return nil
		}
		if strings.Contains(string(data), "kanban-plugin: board") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
