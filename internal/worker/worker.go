// Package worker orchestrates trailer acquisition jobs: it drains a FIFO
// queue with a bounded pool, fans each job out across the candidate service
// adapters, picks the best result and persists it.
package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"trailfetch/internal/blob"
	"trailfetch/internal/metrics"
	"trailfetch/internal/notify"
	"trailfetch/internal/scratch"
	"trailfetch/internal/store"
	"trailfetch/models"
	"trailfetch/services"
)

// Config tunes the worker pool.
type Config struct {
	// Concurrency bounds how many jobs run at once. Defaults to 5.
	Concurrency int
	// LocateLimit bounds concurrent adapter lookups across all jobs, not
	// per job. Defaults to Concurrency.
	LocateLimit int
	// QueueSize is the enqueue buffer. Defaults to 1024.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.LocateLimit <= 0 {
		c.LocateLimit = c.Concurrency
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	return c
}

// MediaProber inspects finished trailer files. Satisfied by *remux.Engine.
type MediaProber interface {
	// AudioLanguages reports the language tags embedded in a file's audio
	// streams.
	AudioLanguages(ctx context.Context, path string) ([]string, error)
	// Thumbnail extracts a poster frame from a video file.
	Thumbnail(ctx context.Context, videoPath, outPath string) error
}

// Worker runs acquisition jobs to a terminal status.
type Worker struct {
	cfg      Config
	store    *store.Store
	registry *services.Registry
	engine   MediaProber
	scratch  *scratch.Manager
	notifier *notify.Notifier
	blob     *blob.Client

	queue     chan string
	locateSem chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func New(cfg Config, st *store.Store, registry *services.Registry, engine MediaProber, scr *scratch.Manager, notifier *notify.Notifier, blobClient *blob.Client) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		cfg:       cfg,
		store:     st,
		registry:  registry,
		engine:    engine,
		scratch:   scr,
		notifier:  notifier,
		blob:      blobClient,
		queue:     make(chan string, cfg.QueueSize),
		locateSem: make(chan struct{}, cfg.LocateLimit),
		done:      make(chan struct{}),
	}
}

// Start launches the dispatcher. It returns immediately; jobs run until
// Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		p := pool.New().WithMaxGoroutines(w.cfg.Concurrency)
		for {
			select {
			case <-ctx.Done():
				p.Wait()
				return
			case id, ok := <-w.queue:
				if !ok {
					p.Wait()
					return
				}
				p.Go(func() { w.run(ctx, id) })
			}
		}
	}()
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.closeOnce.Do(func() { close(w.queue) })
	<-w.done
}

// Enqueue schedules a stored process for execution.
func (w *Worker) Enqueue(processID string) {
	w.queue <- processID
}

// Requeue puts every incomplete process back on the queue. Called on
// startup so a crash never strands a job mid-flight.
func (w *Worker) Requeue(ctx context.Context) error {
	pending, err := w.store.ListIncomplete(ctx)
	if err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	for _, p := range pending {
		log.Printf("[worker] process %s was added to queue to continue", p.ID)
		w.Enqueue(p.ID)
	}
	return nil
}

// CancelIncomplete force-cancels every incomplete process instead of
// resuming it. Administrative alternative to Requeue.
func (w *Worker) CancelIncomplete(ctx context.Context) error {
	pending, err := w.store.ListIncomplete(ctx)
	if err != nil {
		return fmt.Errorf("cancel incomplete: %w", err)
	}
	for _, p := range pending {
		if err := w.store.UpdateStatus(ctx, p.ID, models.StatusCancelled, "Cancelled on restart"); err != nil {
			return fmt.Errorf("cancel incomplete: %w", err)
		}
		log.Printf("[worker] process %s was cancelled", p.ID)
	}
	return nil
}

// serviceResult is what one adapter produced for a job.
type serviceResult struct {
	name        string
	trailerPage string
	candidates  []candidate
	err         error
}

// candidate pairs an adapter's trailer file with the audio languages found
// by probing the file itself, independent of what the adapter claims.
type candidate struct {
	services.Candidate
	audioLangs []string
}

func (w *Worker) run(ctx context.Context, processID string) {
	p, err := w.store.GetProcess(ctx, processID)
	if err != nil {
		log.Printf("[worker] process %s: load failed: %v", processID, err)
		return
	}
	if p.IsCompleted {
		return
	}

	metrics.ProcessesInFlight.Inc()
	defer metrics.ProcessesInFlight.Dec()

	if !w.transition(ctx, p.ID, models.StatusProcessing, "Process was started") {
		return
	}

	adapters := w.resolveAdapters(p)
	if len(adapters) == 0 {
		w.transition(ctx, p.ID, models.StatusError, "No usable services configured for this process")
		return
	}

	outDir, err := w.scratch.ProcessDir(p.ID)
	if err != nil {
		w.transition(ctx, p.ID, models.StatusError, fmt.Sprintf("Failed to process: %v", err))
		return
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	if !w.transition(ctx, p.ID, models.StatusFindingTrailerPage, "Looking for trailer on: "+strings.Join(names, ", ")) {
		return
	}

	results := w.locateAll(ctx, p, adapters, outDir)

	usable := filterUsable(results)
	if len(usable) == 0 {
		w.transition(ctx, p.ID, models.StatusNoTrailers, "Trailers not found. Try again with another title variation")
		w.scratch.Sweep(p.ID)
		return
	}

	best := bestServiceResult(usable, p.Lang)
	log.Printf("[worker] | %s | best service: %s", p.ID, best.name)

	if err := w.store.SetServiceName(ctx, p.ID, best.name); err != nil {
		log.Printf("[worker] process %s: persist service name failed: %v", p.ID, err)
	}
	if err := w.store.SetTrailerPage(ctx, p.ID, best.trailerPage); err != nil {
		log.Printf("[worker] process %s: persist trailer page failed: %v", p.ID, err)
	}
	if !w.transition(ctx, p.ID, models.StatusFoundTrailer, "Found the best trailer on "+best.name) {
		return
	}

	titles := make([]string, 0, len(best.candidates))
	for _, c := range best.candidates {
		titles = append(titles, c.Title)
	}
	if !w.transition(ctx, p.ID, models.StatusSaving, "Saving videos: "+strings.Join(titles, ", ")) {
		return
	}

	if err := w.saveResult(ctx, p.ID, best); err != nil {
		w.transition(ctx, p.ID, models.StatusError, fmt.Sprintf("Failed to process: %v", err))
		return
	}

	w.transition(ctx, p.ID, models.StatusDone, "Process completed")
	w.scratch.Sweep(p.ID)
}

// resolveAdapters maps the persisted service list back to registered
// adapters. Unknown names are dropped.
func (w *Worker) resolveAdapters(p *models.Process) []services.Adapter {
	var out []services.Adapter
	for _, name := range strings.Split(p.Services, "|") {
		if a, ok := w.registry.Get(strings.TrimSpace(name)); ok {
			out = append(out, a)
		}
	}
	return out
}

// locateAll fans the job out across its candidate adapters. Lookups are
// bounded by the global locate semaphore so the whole system, not each job,
// stays within its resource budget.
func (w *Worker) locateAll(ctx context.Context, p *models.Process, adapters []services.Adapter, outDir string) []*serviceResult {
	results := make([]*serviceResult, len(adapters))
	var downloadOnce sync.Once

	var wg conc.WaitGroup
	for i, adapter := range adapters {
		adapter := adapter // per-iteration copy: go.mod targets go 1.21, which shares the range variable across iterations
		results[i] = &serviceResult{name: adapter.Name()}
		result := results[i]

		wg.Go(func() {
			w.locateSem <- struct{}{}
			defer func() { <-w.locateSem }()

			var pageSeen atomic.Bool
			req := services.LocateRequest{
				Lang:            p.Lang,
				FullAudioTracks: p.FullAudioTracks,
				OutDir:          outDir,
				OnTrailerFound: func(pageURL string) {
					if !pageSeen.CompareAndSwap(false, true) {
						return
					}
					result.trailerPage = pageURL
					// persisted immediately so a later download failure
					// still leaves the page behind for manual retries
					if err := w.store.SetTrailerPage(ctx, p.ID, pageURL); err != nil {
						log.Printf("[worker] process %s: persist trailer page failed: %v", p.ID, err)
					}
					downloadOnce.Do(func() {
						w.transition(ctx, p.ID, models.StatusTryingToDownload, "Trying to download the trailers from: "+result.name)
					})
				},
			}
			if p.Name != nil {
				req.Name = *p.Name
			}
			if p.Year != nil {
				req.Year = *p.Year
			}
			if p.TrailerPage != nil {
				req.TrailerPage = *p.TrailerPage
			}

			found, err := adapter.Locate(ctx, req)
			if err != nil {
				result.err = err
				metrics.ServiceLookups.WithLabelValues(result.name, "miss").Inc()
				log.Printf("[worker] | %s | failed to find the trailer on %s: %v", p.ID, result.name, err)
				return
			}
			metrics.ServiceLookups.WithLabelValues(result.name, "hit").Inc()

			for _, c := range found {
				langs, probeErr := w.engine.AudioLanguages(ctx, c.Path)
				if probeErr != nil {
					log.Printf("[worker] | %s | probe of %s failed: %v", p.ID, c.Path, probeErr)
				}
				result.candidates = append(result.candidates, candidate{Candidate: c, audioLangs: langs})
			}
		})
	}
	wg.Wait()
	return results
}

// filterUsable drops results that never reported a page, found nothing, or
// produced a file with no detectable audio.
func filterUsable(results []*serviceResult) []*serviceResult {
	var out []*serviceResult
	for _, r := range results {
		if r.err != nil || r.trailerPage == "" || len(r.candidates) == 0 {
			continue
		}
		allHaveAudio := true
		for _, c := range r.candidates {
			if len(c.audioLangs) == 0 {
				allHaveAudio = false
				break
			}
		}
		if allHaveAudio {
			out = append(out, r)
		}
	}
	return out
}

func (w *Worker) saveResult(ctx context.Context, processID string, best *serviceResult) error {
	for _, c := range best.candidates {
		log.Printf("[worker] | %s | uploading: %s", processID, c.Title)

		url, err := w.blob.Put(ctx, c.Path)
		if err != nil {
			return fmt.Errorf("upload trailer %q: %w", c.Title, err)
		}

		trailer := &models.Trailer{URL: url, Title: c.Title, ThumbnailURL: w.uploadThumbnail(ctx, processID, c.Path)}
		if err := w.store.InsertTrailer(ctx, processID, trailer); err != nil {
			return err
		}
		log.Printf("[worker] | %s | uploaded: %s", processID, c.Title)

		for _, sub := range c.Subtitles {
			subURL, err := w.blob.Put(ctx, sub.Path)
			if err != nil {
				log.Printf("[worker] | %s | subtitle upload failed (%s): %v", processID, sub.Language, err)
				continue
			}
			if err := w.store.InsertSubtitle(ctx, trailer.ID, &models.Subtitle{Language: sub.Language, URL: subURL}); err != nil {
				return err
			}
		}
		log.Printf("[worker] | %s | uploaded: %d subtitles", processID, len(c.Subtitles))
	}
	return nil
}

// uploadThumbnail extracts and uploads a poster frame. Thumbnails are a
// best-effort extra, failures only cost the image.
func (w *Worker) uploadThumbnail(ctx context.Context, processID, videoPath string) string {
	thumbPath := videoPath + "-thumbnail.jpg"
	if err := w.engine.Thumbnail(ctx, videoPath, thumbPath); err != nil {
		log.Printf("[worker] | %s | thumbnail extraction failed: %v", processID, err)
		return ""
	}
	url, err := w.blob.Put(ctx, thumbPath)
	if err != nil {
		log.Printf("[worker] | %s | thumbnail upload failed: %v", processID, err)
		return ""
	}
	return url
}

// transition persists a status change and, when a callback is registered,
// delivers the updated process to it. A persistence failure aborts the job:
// without durable state it is not safe to continue.
func (w *Worker) transition(ctx context.Context, processID string, status models.Status, details string) bool {
	if err := w.store.UpdateStatus(ctx, processID, status, details); err != nil {
		log.Printf("[worker] process %s: FATAL: persist status %s failed: %v", processID, status, err)
		return false
	}
	if status.IsTerminal() {
		metrics.ProcessesCompleted.WithLabelValues(string(status)).Inc()
	}

	detail, err := w.store.GetProcessDetail(ctx, processID)
	if err != nil {
		log.Printf("[worker] process %s: load for callback failed: %v", processID, err)
		return true
	}
	w.notifier.Deliver(ctx, detail)
	return true
}
