package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/reconctl/internal/config"
	"github.com/CosmoTheDev/reconctl/models"
)

type recordingChannel struct {
	name   string
	events []Event
	err    error
}

func (r *recordingChannel) Name() string       { return r.name }
func (r *recordingChannel) IsConfigured() bool { return r.name != "" }
func (r *recordingChannel) Send(_ context.Context, evt Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestDispatcherDefaultEvents(t *testing.T) {
	a := &recordingChannel{name: "a", err: errors.New("down")}
	b := &recordingChannel{name: "b"}
	off := &recordingChannel{}
	d := newDispatcher(nil, a, off, b)

	assert.True(t, d.IsAnyConfigured())
	assert.Equal(t, []string{"a", "b"}, d.Channels())

	d.Notify(t.Context(), Event{Type: EventScanCompleted})
	d.Notify(t.Context(), Event{Type: EventScanSubmitted})
	d.Notify(t.Context(), Event{Type: EventPollDegraded})

	// A failing channel does not stop delivery to the next one.
	assert.Len(t, a.events, 2)
	require.Len(t, b.events, 2)
	assert.Equal(t, EventPollDegraded, b.events[1].Type)
	assert.Empty(t, off.events)
}

func TestDispatcherEventFilter(t *testing.T) {
	ch := &recordingChannel{name: "x"}
	d := newDispatcher([]string{EventScanSubmitted}, ch)
	d.Notify(t.Context(), Event{Type: EventScanCompleted})
	d.Notify(t.Context(), Event{Type: EventScanSubmitted})
	require.Len(t, ch.events, 1)
	assert.Equal(t, EventScanSubmitted, ch.events[0].Type)
}

func TestNewDispatcherWithoutChannels(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{})
	assert.False(t, d.IsAnyConfigured())
	d.Notify(t.Context(), Event{Type: EventScanCompleted})
}

func TestScanFinishedEvent(t *testing.T) {
	evt := ScanFinished(&models.Scan{
		ID: "abc123", Domain: "example.com", Status: models.StatusCompleted,
		Subdomains:      &models.SubdomainResult{Subdomains: []string{"a", "b"}},
		Ports:           []models.PortResult{{Ports: []int{80}}},
		Vulnerabilities: []string{"CVE-2021-44228"},
	}, "http://localhost:8000/")

	assert.Equal(t, EventScanCompleted, evt.Type)
	assert.Equal(t, "Scan completed: example.com", evt.Title)
	assert.Contains(t, evt.Body, "2 subdomains, 1 open ports")
	assert.Contains(t, evt.Body, "CVE-2021-44228")
	assert.Equal(t, "http://localhost:8000/api/scan/abc123", evt.URL)
	assert.Equal(t, 2, evt.Metadata["subdomains"])

	failed := ScanFinished(&models.Scan{ID: "f", Domain: "x.com", Status: models.StatusFailed}, "")
	assert.Equal(t, EventScanFailed, failed.Type)
	assert.Empty(t, failed.URL)
}

func TestPollDegradedEvent(t *testing.T) {
	evt := PollDegraded("abc123", "", 10, errors.New("connection refused"))
	assert.Equal(t, EventPollDegraded, evt.Type)
	assert.Equal(t, "Lost track of scan abc123", evt.Title)
	assert.Contains(t, evt.Body, "10 consecutive failures")
	assert.Contains(t, evt.Body, "connection refused")
}

func TestWebhookSignsPayload(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL, Secret: "s3cret"})
	require.True(t, wh.IsConfigured())
	require.NoError(t, wh.Send(t.Context(), ScanSubmitted("abc123", "example.com", "cli")))

	assert.Equal(t, "sha256="+Sign("s3cret", gotBody), gotSig)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "scan_submitted", payload["type"])
	assert.Equal(t, "abc123", payload["job_id"])
}

func TestChannelsReportHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	evt := Event{Type: EventScanCompleted, Title: "t", JobID: "abc123"}
	assert.ErrorContains(t, NewSlack(config.SlackNotifyConfig{WebhookURL: srv.URL}).Send(t.Context(), evt), "502")
	assert.ErrorContains(t, NewWebhook(config.WebhookNotifyConfig{URL: srv.URL}).Send(t.Context(), evt), "502")
	assert.ErrorContains(t, NewTelegram(config.TelegramNotifyConfig{BotToken: "tok", ChatID: "1", APIBase: srv.URL}).Send(t.Context(), evt), "502")
}

func TestTelegramPostsToBotEndpoint(t *testing.T) {
	var path string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	tg := NewTelegram(config.TelegramNotifyConfig{BotToken: "tok", ChatID: "42", APIBase: srv.URL + "/"})
	require.NoError(t, tg.Send(t.Context(), Event{Title: "Scan completed: example.com", Body: "done"}))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "Scan completed: example.com\n\ndone", payload["text"])

	assert.False(t, NewTelegram(config.TelegramNotifyConfig{BotToken: "tok"}).IsConfigured())
}
