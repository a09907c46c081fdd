// Package watch monitors a drop directory and transcribes audio files that
// appear in it, writing the caption file next to the source audio.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"captiond/internal/pipeline"
)

// audioExts are the file extensions picked up from the watch directory.
var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// Runner runs one transcription job; implemented by pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, audioPath, modelSize string) (*pipeline.Result, error)
}

// Watcher monitors a directory for new audio files and feeds them through
// the transcription pipeline.
type Watcher struct {
	runner    Runner
	watchDir  string
	modelSize string
	log       zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	// retryDelay spaces out reruns when the pipeline is busy.
	retryDelay time.Duration

	filesProcessed atomic.Int64
	filesFailed    atomic.Int64
}

// New creates a watcher over watchDir. modelSize may be empty for the
// provider default.
func New(runner Runner, watchDir, modelSize string, log zerolog.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		runner:         runner,
		watchDir:       watchDir,
		modelSize:      modelSize,
		log:            log.With().Str("component", "watcher").Logger(),
		ctx:            ctx,
		cancel:         cancel,
		debounceTimers: make(map[string]*time.Timer),
		retryDelay:     5 * time.Second,
	}
}

// Start initializes the fsnotify watcher and begins watching for new files.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw

	if err := fw.Add(w.watchDir); err != nil {
		fw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop()

	w.log.Info().Str("watch_dir", w.watchDir).Msg("file watcher started")
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
	w.log.Info().
		Int64("processed", w.filesProcessed.Load()).
		Int64("failed", w.filesFailed.Load()).
		Msg("file watcher stopped")
}

// Processed returns the number of successfully transcribed files.
func (w *Watcher) Processed() int64 { return w.filesProcessed.Load() }

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.maybeSchedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// maybeSchedule debounces a file event: the job fires once the file has been
// quiet for a second, so half-copied files are not transcribed.
func (w *Watcher) maybeSchedule(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}
	if !audioExts[strings.ToLower(filepath.Ext(path))] {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if timer, ok := w.debounceTimers[path]; ok {
		timer.Reset(time.Second)
		return
	}
	w.debounceTimers[path] = time.AfterFunc(time.Second, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
		w.process(path)
	})
}

func (w *Watcher) process(path string) {
	if w.ctx.Err() != nil {
		return
	}

	_, err := w.runner.Run(w.ctx, path, w.modelSize)
	switch {
	case err == nil:
		w.filesProcessed.Add(1)
		w.log.Info().Str("file", filepath.Base(path)).Msg("watch file transcribed")
	case errors.Is(err, pipeline.ErrBusy):
		// Another job holds the pipeline; try again later.
		w.log.Debug().Str("file", filepath.Base(path)).Msg("pipeline busy, rescheduling")
		w.debounceMu.Lock()
		if _, ok := w.debounceTimers[path]; !ok {
			w.debounceTimers[path] = time.AfterFunc(w.retryDelay, func() {
				w.debounceMu.Lock()
				delete(w.debounceTimers, path)
				w.debounceMu.Unlock()
				w.process(path)
			})
		}
		w.debounceMu.Unlock()
	default:
		w.filesFailed.Add(1)
		w.log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("watch file transcription failed")
	}
}
