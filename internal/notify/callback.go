package notify

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const noticeDateLayout = "2006-01-02"

// CallbackNotifier posts inactivity notices to the front end as a form, authenticating
// with a shared Token header.
type CallbackNotifier struct {
	client *http.Client
	url    string
	token  string
}

func NewCallbackNotifier(client *http.Client, callbackURL, token string) *CallbackNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CallbackNotifier{client: client, url: callbackURL, token: token}
}

func (n *CallbackNotifier) Notify(ctx context.Context, notice Notice) error {
	form := url.Values{
		"Type":     {string(notice.Type)},
		"Username": {notice.Username},
		"Date":     {notice.Date.Format(noticeDateLayout)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(form.Encode()))
	if err != nil {
		return &DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Token", n.token)

	resp, err := n.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode}
	}
	return nil
}

// LogNotifier stands in for the callback when none is configured (local runs).
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) error {
	n.logger.InfoContext(ctx, "inactivity notice",
		"type", notice.Type,
		"username", notice.Username,
		"date", notice.Date.Format(noticeDateLayout),
	)
	return nil
}
