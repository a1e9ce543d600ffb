package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tuannvm/jira-estimate/internal/common"
	"github.com/tuannvm/jira-estimate/internal/jira"
	log "github.com/tuannvm/jira-estimate/internal/logging"
)

// maxWebhookBody bounds the webhook payload read into memory
const maxWebhookBody = 1 << 20

// WebhookResponse is the body returned for an accepted webhook
type WebhookResponse struct {
	Status    string `json:"status"`
	IssueKey  string `json:"issueKey"`
	Event     string `json:"event"`
	Rescan    bool   `json:"rescan"`
	RequestID string `json:"requestId"`
}

// WebhookHandler returns the authenticated webhook handler
func (a *ScannerAgent) WebhookHandler() (http.Handler, error) {
	provider, err := common.NewAuthProvider(a.cfg.AuthType, a.cfg.JWTSecret, a.cfg.APIKey)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		log.Warnf("No authentication provider available, webhook endpoint will be unsecured")
	}
	mux := http.NewServeMux()
	mux.Handle("/webhook", common.AuthMiddleware(provider, http.HandlerFunc(a.HandleWebhook)))
	return mux, nil
}

// SetupHTTPServer creates the webhook listener
func (a *ScannerAgent) SetupHTTPServer() error {
	handler, err := a.WebhookHandler()
	if err != nil {
		return err
	}
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.ServerHost, a.cfg.WebhookPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// StartHTTPServer runs the webhook listener until ctx is done
func (a *ScannerAgent) StartHTTPServer(ctx context.Context) error {
	if a.httpServer == nil {
		return fmt.Errorf("webhook server is not set up")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Webhook endpoint available at: http://%s/webhook", a.httpServer.Addr)
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.httpServer.Shutdown(shutdownCtx)
}

// HandleWebhook accepts Jira issue webhooks and schedules a page rescan when
// the event can change a card on the board.
func (a *ScannerAgent) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	if r.Method != http.MethodPost {
		log.Debugf("[%s] Method not allowed: %s", requestID, r.Method)
		common.ReturnJSONError(w, http.StatusMethodNotAllowed, "Method not allowed: Only POST requests are accepted")
		return
	}

	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		log.Debugf("[%s] Invalid content type: %s", requestID, ct)
		common.ReturnJSONError(w, http.StatusUnsupportedMediaType, "Content type must be application/json")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.ReturnJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	if len(body) == 0 {
		common.ReturnJSONError(w, http.StatusBadRequest, "Request body cannot be empty")
		return
	}

	event, err := jira.TransformWebhook(body)
	if err != nil {
		log.Warnf("[%s] Rejected webhook: %v", requestID, err)
		common.ReturnJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	rescan := a.shouldRescan(event)
	if rescan {
		a.rescanner.ScheduleRescan()
	}
	log.Infof("[%s] Webhook %s for %s (rescan: %v) processed in %v", requestID, event.Event, event.IssueKey, rescan, time.Since(start))

	common.WriteJSON(w, http.StatusOK, WebhookResponse{
		Status:    "success",
		IssueKey:  event.IssueKey,
		Event:     event.Event,
		Rescan:    rescan,
		RequestID: requestID,
	})
}

// shouldRescan reports whether an event warrants a rescan. Created issues may
// appear on the board; any other event only matters for cards already on it.
func (a *ScannerAgent) shouldRescan(event *jira.IssueEvent) bool {
	if a.rescanner == nil || !event.TouchesBoard() {
		return false
	}
	if event.Event == "created" {
		return true
	}
	for _, t := range a.rescanner.Tickets() {
		if t.Key == event.IssueKey {
			return true
		}
	}
	return false
}
