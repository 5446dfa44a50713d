package runtime

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gopluginhost/pluginhost/concurrency"
	"github.com/gopluginhost/pluginhost/errors"
	"github.com/gopluginhost/pluginhost/logging"
	"github.com/gopluginhost/pluginhost/plugin"
	"go.uber.org/zap"
)

// Scan walks every configured directory, parses each immediate
// subdirectory as a candidate plug-in, and installs (or, with the
// UPGRADE flag, replaces an older version of) whatever it finds. A
// per-plug-in IO or Malformed error is collected into the returned chain
// rather than aborting the scan.
func (c *Context) Scan(flags plugin.ScanFlags) *errors.Chain {
	c.mu.Lock()
	dirs := append([]string{}, c.directories...)
	parser := c.parser
	c.mu.Unlock()

	chain := errors.NewChain()
	if parser == nil {
		chain.Add(errors.NewIO("no descriptor parser configured"))
		return chain
	}

	var activeBefore []string
	if flags.Has(plugin.ScanRestartActive) {
		activeBefore = c.StartedPlugins()
	}
	if flags.Has(plugin.ScanStopAllOnInstall) {
		c.StopAll()
	}

	c.mu.Lock()
	concurrencyLimit := c.scanConcurrency
	c.mu.Unlock()
	if concurrencyLimit < 1 {
		concurrencyLimit = 1
	}
	sem := concurrency.NewSemaphore(concurrencyLimit)
	var chainMu sync.Mutex
	var wg sync.WaitGroup

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			chain.Add(errors.NewIO(err.Error()))
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			wg.Add(1)
			go func(installPath, name string) {
				defer wg.Done()
				sem.WithSemaphore(func() {
					d, err := parser.Parse(installPath)
					if err != nil {
						chainMu.Lock()
						chain.Add(errors.NewMalformed(name, err.Error()))
						chainMu.Unlock()
						return
					}
					if err := c.installOrUpgrade(d, flags); err != nil {
						chainMu.Lock()
						chain.Add(errors.FromError(err))
						chainMu.Unlock()
					}
				})
			}(filepath.Join(dir, entry.Name()), entry.Name())
		}
	}
	wg.Wait()

	if flags.Has(plugin.ScanRestartActive) {
		for _, id := range activeBefore {
			c.Start(id)
		}
	}

	return chain
}

func (c *Context) installOrUpgrade(d *plugin.Descriptor, flags plugin.ScanFlags) error {
	c.mu.Lock()
	existing, exists := c.plugins[d.Identifier]
	c.mu.Unlock()

	if !exists {
		_, err := c.Install(d)
		return err
	}

	if !flags.Has(plugin.ScanUpgrade) {
		return nil
	}
	if d.Version == nil || existing.Descriptor.Version == nil {
		return nil
	}
	if plugin.CompareVersions(*d.Version, *existing.Descriptor.Version) <= 0 {
		return nil
	}

	if flags.Has(plugin.ScanStopAllOnUpgrade) {
		c.StopAll()
	}
	if err := c.Uninstall(existing.ID()); err != nil {
		return err
	}
	_, err := c.Install(d)
	return err
}

// Watcher drives repeated Scan calls whenever a configured directory
// changes, using fsnotify instead of polling.
type Watcher struct {
	ctx    *Context
	flags  plugin.ScanFlags
	logger logging.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher creates a directory-change watcher over ctx's currently
// configured directories. Directories added to ctx afterward are not
// picked up automatically; call AddDirectory before NewWatcher, or
// construct a new Watcher after changing the directory list.
func NewWatcher(ctx *Context, flags plugin.ScanFlags, logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.FromZap(zap.NewNop())
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewIO("fsnotify: " + err.Error())
	}
	for _, dir := range ctx.Directories() {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errors.NewIO("fsnotify: watch " + dir + ": " + err.Error())
		}
	}
	return &Watcher{ctx: ctx, flags: flags, logger: logger, fsw: fsw}, nil
}

// Run blocks, re-scanning on every filesystem event until ctx is
// cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.logger.Debug("plugin directory changed", zap.String("event", ev.String()))
			if chain := w.ctx.Scan(w.flags); chain.HasErrors() {
				w.logger.Warn("scan reported errors", zap.String("errors", chain.Error()))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher without waiting for Run to return.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
