package slack_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/service/slack"
	slackapi "github.com/slack-go/slack"
)

type recorder struct {
	mu       sync.Mutex
	requests []map[string]string
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseForm()
	r.mu.Lock()
	r.requests = append(r.requests, map[string]string{
		"path":    req.URL.Path,
		"channel": req.PostForm.Get("channel"),
		"text":    req.PostForm.Get("text"),
		"blocks":  req.PostForm.Get("blocks"),
	})
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
}

func completedRun() *model.ModelUpdate {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	return &model.ModelUpdate{
		ID:            model.NewModelUpdateID(),
		Version:       7,
		Status:        types.RunStatusCompleted,
		Trigger:       types.TriggerSchedule,
		WishesCount:   120,
		TopicsCreated: 6,
		NoiseCount:    14,
		StartedAt:     started,
		CompletedAt:   &completed,
	}
}

func TestNew(t *testing.T) {
	t.Run("returns error when token is empty", func(t *testing.T) {
		_, err := slack.New("", "C123")
		gt.Value(t, err).NotNil()
	})

	t.Run("returns error when channel is empty", func(t *testing.T) {
		_, err := slack.New("xoxb-test", "")
		gt.Value(t, err).NotNil()
	})

	t.Run("creates notifier", func(t *testing.T) {
		n, err := slack.New("xoxb-test", "C123")
		gt.NoError(t, err).Required()
		gt.Value(t, n).NotNil()
	})
}

func TestNotifyRun(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	n, err := slack.New("xoxb-test", "C123", slack.WithAPIURL(server.URL+"/"))
	gt.NoError(t, err).Required()

	t.Run("completed run is posted", func(t *testing.T) {
		gt.NoError(t, n.NotifyRun(context.Background(), completedRun())).Required()

		rec.mu.Lock()
		defer rec.mu.Unlock()
		gt.A(t, rec.requests).Length(1).Required()
		req := rec.requests[0]
		gt.Value(t, req["path"]).Equal("/chat.postMessage")
		gt.Value(t, req["channel"]).Equal("C123")
		gt.String(t, req["text"]).Contains("#7 completed")
		gt.String(t, req["blocks"]).Contains("Topics created")
	})

	t.Run("running run is skipped", func(t *testing.T) {
		run := completedRun()
		run.Status = types.RunStatusRunning
		gt.NoError(t, n.NotifyRun(context.Background(), run)).Required()

		rec.mu.Lock()
		defer rec.mu.Unlock()
		gt.A(t, rec.requests).Length(1)
	})
}

func TestNotifyRun_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer server.Close()

	n, err := slack.New("xoxb-test", "C404", slack.WithAPIURL(server.URL+"/"))
	gt.NoError(t, err).Required()

	err = n.NotifyRun(context.Background(), completedRun())
	gt.Error(t, err)
}

func TestBuildRunBlocks(t *testing.T) {
	run := completedRun()
	gt.A(t, slack.BuildRunBlocks(run)).Length(2)

	run.Status = types.RunStatusFailed
	run.Error = "embedding generation failed"
	blocks := slack.BuildRunBlocks(run)
	gt.A(t, blocks).Length(3).Required()

	section, ok := blocks[2].(*slackapi.SectionBlock)
	gt.B(t, ok).True()
	gt.String(t, section.Text.Text).Contains("embedding generation failed")
}

func TestTruncateToMaxBytes(t *testing.T) {
	gt.Value(t, slack.TruncateToMaxBytes("short", 10)).Equal("short")
	gt.Value(t, slack.TruncateToMaxBytes("abcdef", 3)).Equal("abc…")

	// never splits a multi-byte rune
	out := slack.TruncateToMaxBytes("ああ", 4)
	gt.Value(t, out).Equal("あ…")
	gt.B(t, strings.HasSuffix(out, "…")).True()
}

func TestIntegration(t *testing.T) {
	token := os.Getenv("TEST_SLACK_BOT_TOKEN")
	if token == "" {
		t.Skip("TEST_SLACK_BOT_TOKEN is not set")
	}
	channelID := os.Getenv("TEST_SLACK_CHANNEL_ID")
	if channelID == "" {
		t.Skip("TEST_SLACK_CHANNEL_ID is not set")
	}

	n, err := slack.New(token, channelID)
	gt.NoError(t, err).Required()
	gt.NoError(t, n.NotifyRun(context.Background(), completedRun()))
}
