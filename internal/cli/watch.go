package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// runCompileWatch compiles once, then again after every change to the
// design file or the catalog, until ctx is cancelled. Compile failures
// are reported and watching continues.
func runCompileWatch(ctx context.Context, opts *CompileOptions, catalogPath, designPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	compileOnce := func() {
		if err := runCompile(ctx, opts, catalogPath, designPath, cmd); err != nil {
			formatter.VerboseLog("compile failed: %v", err)
		}
	}

	match, dirs, err := watchTargets(catalogPath, designPath)
	if err != nil {
		return formatter.failWith(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	compileOnce()
	formatter.VerboseLog("Watching %s and %s", designPath, catalogPath)

	err = watchFiles(ctx, dirs, match, opts.Debounce, func() {
		if opts.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "-- %s: recompiling\n", time.Now().Format(time.TimeOnly))
		}
		compileOnce()
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

// watchTargets returns a matcher for the files whose changes trigger a
// recompile, and the directories to watch for them. Directories are
// watched rather than files so editors that replace files on save are
// still seen.
func watchTargets(catalogPath, designPath string) (func(string) bool, []string, error) {
	design, err := filepath.Abs(designPath)
	if err != nil {
		return nil, nil, err
	}
	catalogAbs, err := filepath.Abs(catalogPath)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(catalogAbs)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog not found: %s", catalogPath)
	}

	catalogDir := catalogAbs
	catalogFile := ""
	if !info.IsDir() {
		catalogDir = filepath.Dir(catalogAbs)
		catalogFile = catalogAbs
	}

	match := func(name string) bool {
		name, err := filepath.Abs(name)
		if err != nil {
			return false
		}
		switch {
		case name == design:
			return true
		case catalogFile != "":
			return name == catalogFile || (filepath.Ext(catalogFile) == ".cue" && filepath.Dir(name) == catalogDir && filepath.Ext(name) == ".cue")
		default:
			return filepath.Dir(name) == catalogDir && filepath.Ext(name) == ".cue"
		}
	}

	dirs := []string{filepath.Dir(design)}
	if catalogDir != dirs[0] {
		dirs = append(dirs, catalogDir)
	}
	return match, dirs, nil
}

// watchFiles calls onChange once per burst of changes to files accepted
// by match. A burst ends after debounce without further events.
func watchFiles(ctx context.Context, dirs []string, match func(string) bool, debounce time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		slog.Debug("watching directory", "dir", dir)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !match(event.Name) {
				continue
			}
			slog.Debug("file changed", "file", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}
