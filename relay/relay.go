// Package relay posts signal payloads to downstream webhooks.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Relay delivers payloads in the background. Failures are logged and never
// reported back to the caller.
type Relay struct {
	client *http.Client
	wg     sync.WaitGroup
}

func New(timeout time.Duration) *Relay {
	return &Relay{client: &http.Client{Timeout: timeout}}
}

// Forward posts payload to url. With astro set the payload's "content" field
// is sent as plain text instead of the JSON document.
func (r *Relay) Forward(url string, payload []byte, astro bool) {
	if url == "" {
		slog.Warn("No URL defined for signal, dropping payload")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.send(url, payload, astro); err != nil {
			slog.Error("Failed to forward signal", "url", url, "astro", astro, "error", err)
		}
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (r *Relay) Wait() {
	r.wg.Wait()
}

func (r *Relay) send(url string, payload []byte, astro bool) error {
	body := payload
	contentType := "application/json"
	if astro {
		body = ContentField(payload)
		contentType = "text/plain"
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	slog.Info("Signal forwarded", "url", url, "status", resp.StatusCode, "response", string(respBody))
	return nil
}

// ContentField extracts the "content" member of a JSON object. Strings are
// returned unquoted; other values keep their JSON form. Anything that is not
// an object with a content member yields an empty body.
func ContentField(payload []byte) []byte {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil
	}
	raw, ok := doc["content"]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}
