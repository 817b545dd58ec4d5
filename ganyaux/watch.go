package ganyaux

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a viewer configuration file whenever it is written.
// Reloaded configurations are consumed with [ConfigWatcher.Poll] from the render loop.
type ConfigWatcher struct {
	path    string
	log     *slog.Logger
	watcher *fsnotify.Watcher
	updates chan ViewerConfig
	done    chan struct{}
}

// NewConfigWatcher watches the configuration file at path. The directory is watched
// so that editors replacing the file by rename are followed. logger may be nil.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.New(discardHandler{})
	}
	if _, err := FormatFromPath(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = w.Add(filepath.Dir(abs))
	if err != nil {
		w.Close()
		return nil, err
	}
	cw := &ConfigWatcher{
		path:    abs,
		log:     logger,
		watcher: w,
		updates: make(chan ViewerConfig, 1),
		done:    make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *ConfigWatcher) run() {
	defer close(cw.done)
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != cw.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := LoadViewerConfig(cw.path)
			if err != nil {
				cw.log.Warn("ignoring invalid config", slog.String("path", cw.path), slog.Any("err", err))
				continue
			}
			cw.log.Info("config reloaded", slog.String("path", cw.path))
			// Keep only the latest configuration.
			select {
			case <-cw.updates:
			default:
			}
			cw.updates <- cfg
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.log.Error("watching config", slog.Any("err", err))
		}
	}
}

// Poll returns the latest reloaded configuration, if any, without blocking.
func (cw *ConfigWatcher) Poll() (ViewerConfig, bool) {
	select {
	case cfg := <-cw.updates:
		return cfg, true
	default:
		return ViewerConfig{}, false
	}
}

// Updates returns the channel reloaded configurations are sent on.
func (cw *ConfigWatcher) Updates() <-chan ViewerConfig { return cw.updates }

// Close stops watching and waits for the watch goroutine to exit.
func (cw *ConfigWatcher) Close() error {
	err := cw.watcher.Close()
	<-cw.done
	return err
}
