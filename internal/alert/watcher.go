package alert

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/tmoradi/kestrel/internal/config"
)

// WatchRules reloads the rule set whenever the rules file changes on disk.
// Editors commonly replace files by rename, so the parent directory is
// watched and events are filtered by name. Returns after arming the
// watcher; the reload loop runs until stop closes.
func WatchRules(engine *Engine, path string, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	log := config.Logger("alert")
	log.Info("Watching rules file for changes", "path", path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				log.Info("Rules file changed, reloading", "path", path, "op", event.Op.String())
				if err := engine.LoadRules(path); err != nil {
					log.Error("Rules reload failed, keeping previous rules", "error", err.Error())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Rules watcher error", "error", err.Error())
			case <-stop:
				return
			}
		}
	}()
	return nil
}
