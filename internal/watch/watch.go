// Package watch runs a single recursive fsnotify watcher over the shared
// directory and fans synthetic file_change messages out to every room that
// currently has a present agent.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/glob"
)

// RoomLister supplies the set of rooms a change should be fanned out to.
// *internal/hub.Hub satisfies this.
type RoomLister interface {
	ActiveRoomNames() []string
}

// RoomAppender appends a message to a room's in-memory log without a Store
// write. *internal/hub.Hub satisfies this via AppendTransientMessage.
type RoomAppender interface {
	AppendTransientMessage(ctx context.Context, msg core.Message) (core.Message, error)
}

// Watcher owns the single fsnotify.Watcher over root and turns its events
// into file_change messages appended to every active room's log and
// published on the bus.
type Watcher struct {
	fsw        *fsnotify.Watcher
	root       string
	bus        *bus.Bus
	rooms      RoomLister
	appender   RoomAppender
	extraGlobs []string
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a Watcher rooted at root. It does not start watching until
// Start is called.
func New(root string, b *bus.Bus, rooms RoomLister, appender RoomAppender, extraGlobs []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve shared dir %q: %w", root, err)
	}
	w := &Watcher{fsw: fsw, root: abs, bus: b, rooms: rooms, appender: appender, extraGlobs: extraGlobs, done: make(chan struct{})}
	if err := w.addRecursive(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr == nil && rel != "." && glob.Ignored(rel, w.extraGlobs) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Start launches the event loop. Call Stop to shut it down.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(ctx, ev)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Printf("watch: %v", err)
			}
		}
	}()
}

// Stop cancels the event loop, waits for it to exit, and closes the
// underlying fsnotify watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.done
	w.fsw.Close()
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if glob.Ignored(rel, w.extraGlobs) {
		return
	}

	action, verb := classify(ev.Op)
	if action == "" {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if addErr := w.addRecursive(ev.Name); addErr != nil {
				log.Printf("watch: add new directory %q: %v", ev.Name, addErr)
			}
		}
	}

	msg := core.Message{
		AgentName: "System",
		Content:   fmt.Sprintf("%s %s", rel, verb),
		Type:      core.MessageFileChange,
		Timestamp: time.Now().UTC(),
		Metadata: map[string]any{
			"filePath": rel,
			"action":   action,
		},
	}

	for _, room := range w.rooms.ActiveRoomNames() {
		roomMsg := msg
		roomMsg.Room = room
		if w.appender != nil {
			appended, err := w.appender.AppendTransientMessage(ctx, roomMsg)
			if err != nil {
				log.Printf("watch: append file_change to room %q: %v", room, err)
			} else {
				roomMsg = appended
			}
		}
		w.bus.Publish(room, core.Event{Kind: core.EventMessage, Message: &roomMsg})
	}
}

func classify(op fsnotify.Op) (action, verb string) {
	switch {
	case op.Has(fsnotify.Create):
		return "add", "was created"
	case op.Has(fsnotify.Write):
		return "change", "was modified"
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return "delete", "was deleted"
	default:
		return "", ""
	}
}
