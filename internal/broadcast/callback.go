package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mthorvald/audiogen/pkg/log"
)

// Notifier mirrors a job's event stream to a subscriber-provided webhook.
// Every event is delivered with a single best-effort POST; failures are
// logged and never affect the job or later deliveries.
type Notifier struct {
	watcher *Watcher
	client  *http.Client
}

func NewNotifier(watcher *Watcher, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		watcher: watcher,
		client:  &http.Client{Timeout: timeout},
	}
}

// Deliver watches the job and POSTs each event to callbackURL until the
// terminal event has been sent. Intended to run in its own goroutine.
func (n *Notifier) Deliver(ctx context.Context, jobID, callbackURL, correlationID string) {
	events, err := n.watcher.Watch(ctx, jobID, correlationID)
	if err != nil {
		log.Error("Callback watch for job %s failed: %v", jobID, err)
		return
	}

	for ev := range events {
		n.post(ctx, jobID, callbackURL, ev)
		if ev.Final {
			log.Info("Callback stream for job %s finished (correlation %s)", jobID, correlationID)
			return
		}
	}
}

func (n *Notifier) post(ctx context.Context, jobID, callbackURL string, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error("Failed to encode callback for job %s: %v", jobID, err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		log.Error("Failed to build callback request for job %s: %v", jobID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Error("Callback delivery for job %s failed: %v", jobID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn("Callback endpoint for job %s returned %d", jobID, resp.StatusCode)
	}
}
