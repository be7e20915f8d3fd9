// Package notify delivers job results to caller-provided webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"trailfetch/internal/store"
	"trailfetch/models"
)

// Notifier POSTs the final state of a job to its callback URL. Delivery
// failures are recorded on the job row but never fail the job itself.
type Notifier struct {
	store *store.Store
	http  *http.Client
}

func New(st *store.Store) *Notifier {
	return &Notifier{
		store: st,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Deliver sends the full job detail to its callback URL, if one was
// registered, and persists the delivery outcome.
func (n *Notifier) Deliver(ctx context.Context, detail *models.ProcessDetail) {
	if detail.CallbackURL == nil || *detail.CallbackURL == "" {
		return
	}

	err := n.post(ctx, *detail.CallbackURL, detail)
	if err != nil {
		log.Printf("[notify] callback for process %s failed: %v", detail.ID, err)
		msg := err.Error()
		if dbErr := n.store.SetCallbackError(ctx, detail.ID, &msg); dbErr != nil {
			log.Printf("[notify] failed to record callback error for %s: %v", detail.ID, dbErr)
		}
		return
	}

	log.Printf("[notify] delivered callback for process %s", detail.ID)
	if dbErr := n.store.SetCallbackError(ctx, detail.ID, nil); dbErr != nil {
		log.Printf("[notify] failed to clear callback error for %s: %v", detail.ID, dbErr)
	}
}

func (n *Notifier) post(ctx context.Context, url string, detail *models.ProcessDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
