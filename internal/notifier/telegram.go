package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"TakaneWatch/internal/model"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers break alerts to a Telegram chat. It owns the
// message formatting; callers hand it the raw scan outcome.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
	apiBase  string
	attempts int
	backoff  time.Duration
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		apiBase:  defaultAPIBase,
		attempts: 3,
		backoff:  time.Second,
	}
}

// NotifyBreaks formats the new-high breaks of a scan and sends the alert,
// retrying transient failures with exponential backoff.
func (t *TelegramNotifier) NotifyBreaks(ctx context.Context, rep *model.ScanReport, breaks []model.ScanResult) error {
	if len(breaks) == 0 {
		return nil
	}
	return t.sendWithRetry(ctx, formatBreakReport(rep, breaks))
}

func (t *TelegramNotifier) send(text string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	payload := map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	resp, err := t.client.Post(apiURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// sendWithRetry backs off between attempts, never after the last one.
func (t *TelegramNotifier) sendWithRetry(ctx context.Context, text string) error {
	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		lastErr = t.send(text)
		if lastErr == nil {
			return nil
		}
		if attempt == t.attempts {
			break
		}
		backoff := t.backoff << uint(attempt-1)
		log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", attempt, t.attempts, lastErr, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("telegram send after %d attempts: %w", t.attempts, lastErr)
}
