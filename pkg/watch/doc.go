/*
Package watch provides debounced filesystem change notifications for
sync trigger sources.

A Watcher observes one or more root directories recursively. Raw
fsnotify events are collapsed per root: a burst of writes produces a
single notification once the tree has been quiet for the debounce
period. Consumers read registered root paths from Changes and decide
what a settled change means, typically an out-of-schedule sync run.

	w, err := watch.NewWatcher(2 * time.Second)
	if err != nil {
		return err
	}
	if err := w.Add("/mnt/ingest"); err != nil {
		return err
	}
	w.Start()
	defer w.Stop()

	for root := range w.Changes() {
		triggerSync(root)
	}

Directories created after Add are watched from their create events, so
nested trees that appear later keep reporting.

# Integration Points

This package integrates with:

  - pkg/service: settled changes trigger content type syncs
  - pkg/errdefs: configuration and system error classification
  - pkg/log: component-scoped structured logging
*/
package watch
