package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/cli/config"
)

func TestGemini_Configure(t *testing.T) {
	t.Run("returns nil client when project ID is empty", func(t *testing.T) {
		cfg := config.NewGeminiForTest("", "us-central1", "gemini-2.5-flash")
		gt.Bool(t, cfg.Enabled()).False()

		client, err := cfg.Configure(t.Context())
		gt.NoError(t, err)
		gt.Value(t, client).Nil()
	})

	t.Run("returns flags", func(t *testing.T) {
		cfg := config.NewGeminiForTest("", "", "")
		gt.Value(t, len(cfg.Flags())).Equal(3)
	})
}

func TestGemini_ModelName(t *testing.T) {
	gt.Value(t, config.NewGeminiForTest("p", "us-central1", "").ModelName()).Equal("gemini")
	gt.Value(t, config.NewGeminiForTest("p", "us-central1", "gemini-2.5-flash").ModelName()).Equal("gemini-2.5-flash")
	gt.Bool(t, config.NewGeminiForTest("p", "us-central1", "").Enabled()).True()
}
