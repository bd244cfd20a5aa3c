package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/usecase"
	"github.com/secmon-lab/wishwell/pkg/utils/errutil"
	"github.com/secmon-lab/wishwell/pkg/utils/safe"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	relatedWishes   = 5
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

// writeError maps domain errors to HTTP status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidWish):
		status = http.StatusBadRequest
	case errors.Is(err, usecase.ErrWishRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrConcurrentRunRejected):
		status = http.StatusConflict
	}
	errutil.HandleHTTP(r.Context(), w, err, status)
}

// queryInt reads a non-negative integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, goerr.New("invalid query parameter", goerr.V("name", name), goerr.V("value", raw))
	}
	return v, nil
}

func pageSize(r *http.Request) (int, error) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		return 0, err
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, nil
}

type wishResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	TopicID   *string   `json:"topic_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWishResponse(w *model.Wish) wishResponse {
	resp := wishResponse{
		ID:        w.ID.String(),
		Content:   w.Content,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if w.TopicID != nil {
		id := w.TopicID.String()
		resp.TopicID = &id
	}
	return resp
}

func toWishResponses(wishes []*model.Wish) []wishResponse {
	resp := make([]wishResponse, len(wishes))
	for i, w := range wishes {
		resp[i] = toWishResponse(w)
	}
	return resp
}

type termResponse struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

type topicResponse struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	LabelSource   string         `json:"label_source"`
	Terms         []termResponse `json:"terms"`
	WishCount     int            `json:"wish_count"`
	MemberCount   int            `json:"member_count"`
	ModelVersion  int64          `json:"model_version"`
	Active        bool           `json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
	SupersededAt  *time.Time     `json:"superseded_at,omitempty"`
	ModelUpdateID string         `json:"model_update_id"`
}

func toTopicResponse(t *model.Topic, members int) topicResponse {
	terms := make([]termResponse, len(t.Terms))
	for i, term := range t.Terms {
		terms[i] = termResponse{Term: term.Term, Score: term.Score}
	}
	return topicResponse{
		ID:            t.ID.String(),
		Name:          t.Name,
		Description:   t.Description,
		LabelSource:   t.LabelSource.String(),
		Terms:         terms,
		WishCount:     t.WishCount,
		MemberCount:   members,
		ModelVersion:  t.ModelVersion,
		Active:        t.IsActive(),
		CreatedAt:     t.CreatedAt,
		SupersededAt:  t.SupersededAt,
		ModelUpdateID: t.ModelUpdateID.String(),
	}
}

type runResponse struct {
	ID              string     `json:"id"`
	Version         int64      `json:"version"`
	Status          string     `json:"status"`
	Trigger         string     `json:"trigger"`
	WishesCount     int        `json:"wishes_count"`
	TopicsCreated   int        `json:"topics_created"`
	NoiseCount      int        `json:"noise_count"`
	DegenerateCount int        `json:"degenerate_count"`
	SupersededCount int        `json:"superseded_count"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`

	Configuration model.TrainingConfig `json:"configuration"`
}

func toRunResponse(u *model.ModelUpdate) *runResponse {
	if u == nil {
		return nil
	}
	return &runResponse{
		ID:              u.ID.String(),
		Version:         u.Version,
		Status:          u.Status.String(),
		Trigger:         u.Trigger.String(),
		WishesCount:     u.WishesCount,
		TopicsCreated:   u.TopicsCreated,
		NoiseCount:      u.NoiseCount,
		DegenerateCount: u.DegenerateCount,
		SupersededCount: u.SupersededCount,
		Error:           u.Error,
		StartedAt:       u.StartedAt,
		CompletedAt:     u.CompletedAt,
		DurationSeconds: u.Duration().Seconds(),
		Configuration:   u.Configuration,
	}
}
