package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/utils/safe"
)

const (
	DefaultHTTPEndpoint  = "http://127.0.0.1:8844/embed"
	DefaultHTTPMaxLength = 256
	DefaultHTTPTimeout   = 45 * time.Second
)

// HTTPConfig configures a self-hosted sentence embedding server. Endpoints
// ending with /v1/embeddings are called with the OpenAI compatible payload.
type HTTPConfig struct {
	Endpoint  string
	Model     string
	MaxLength int
	Timeout   time.Duration
	Client    *http.Client
}

type httpBackend struct {
	cfg HTTPConfig
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	Model     string   `json:"model,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewHTTPLoader returns a Loader for an HTTP embedding server
func NewHTTPLoader(cfg HTTPConfig) Loader {
	return func(ctx context.Context) (Backend, error) {
		cfg.Endpoint = normalizeEndpoint(cfg.Endpoint)
		if _, err := url.Parse(cfg.Endpoint); err != nil {
			return nil, goerr.Wrap(err, "invalid embedding endpoint", goerr.V("endpoint", cfg.Endpoint))
		}
		if cfg.MaxLength <= 0 {
			cfg.MaxLength = DefaultHTTPMaxLength
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = DefaultHTTPTimeout
		}
		if cfg.Client == nil {
			cfg.Client = http.DefaultClient
		}
		return &httpBackend{cfg: cfg}, nil
	}
}

func (b *httpBackend) Name() string {
	return "http"
}

func (b *httpBackend) openAICompatible() bool {
	parsed, err := url.Parse(b.cfg.Endpoint)
	return err == nil && strings.HasSuffix(parsed.Path, "/v1/embeddings")
}

func (b *httpBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload := embedRequest{Texts: texts, MaxLength: b.cfg.MaxLength}
	if b.openAICompatible() {
		payload = embedRequest{Input: texts, Model: b.cfg.Model}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal embedding request")
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.cfg.Client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "embedding request failed", goerr.V("endpoint", b.cfg.Endpoint))
	}
	defer safe.Close(ctx, resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read embedding response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("embedding server returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", strings.TrimSpace(string(respBody))))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to decode embedding response")
	}

	raw := parsed.Embeddings
	if len(raw) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		raw = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			raw = append(raw, row.Embedding)
		}
	}
	if len(raw) == 0 {
		return nil, goerr.New("embedding response has no vectors")
	}

	vectors := make([][]float32, len(raw))
	for i, e := range raw {
		v := make([]float32, len(e))
		for j, x := range e {
			v[j] = float32(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func normalizeEndpoint(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultHTTPEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = "/embed"
	}
	return parsed.String()
}
