package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/utils/errutil"
)

type submitWishRequest struct {
	Content string `json:"content"`
}

type wishListResponse struct {
	Wishes []wishResponse `json:"wishes"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

type wishDetailResponse struct {
	wishResponse
	TopicName *string        `json:"topic_name"`
	Related   []wishResponse `json:"related"`
}

type wishTopicResponse struct {
	WishID      string         `json:"wish_id"`
	Topic       *topicResponse `json:"topic"`
	Probability *float64       `json:"probability,omitempty"`
}

type rejectedWishResponse struct {
	ID              string    `json:"id"`
	Content         string    `json:"content"`
	RejectionReason string    `json:"rejection_reason"`
	ModerationModel string    `json:"moderation_model"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Server) listWishes(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}
	page = max(page, 1)
	limit, err := pageSize(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	wishes, total, err := s.uc.Wish.List(r.Context(), (page-1)*limit, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, wishListResponse{
		Wishes: toWishResponses(wishes),
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

func (s *Server) submitWish(w http.ResponseWriter, r *http.Request) {
	var req submitWishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}

	wish, err := s.uc.Wish.Submit(r.Context(), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toWishResponse(wish))
}

func (s *Server) getWish(w http.ResponseWriter, r *http.Request) {
	wt, err := s.uc.Wish.GetTopic(r.Context(), model.WishID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	related, err := s.uc.Wish.Related(r.Context(), wt.Wish, relatedWishes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := wishDetailResponse{
		wishResponse: toWishResponse(wt.Wish),
		Related:      toWishResponses(related),
	}
	if wt.Topic != nil {
		resp.TopicName = &wt.Topic.Name
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) getWishTopic(w http.ResponseWriter, r *http.Request) {
	wt, err := s.uc.Wish.GetTopic(r.Context(), model.WishID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := wishTopicResponse{WishID: wt.Wish.ID.String()}
	if wt.Topic != nil {
		t := toTopicResponse(wt.Topic, wt.Topic.WishCount)
		resp.Topic = &t
	}
	if wt.Assignment != nil {
		resp.Probability = &wt.Assignment.Probability
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) deleteWish(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Wish.Delete(r.Context(), model.WishID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRejectedWishes(w http.ResponseWriter, r *http.Request) {
	limit, err := pageSize(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	rejected, err := s.uc.Wish.ListRejected(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]rejectedWishResponse, len(rejected))
	for i, rw := range rejected {
		resp[i] = rejectedWishResponse{
			ID:              string(rw.ID),
			Content:         rw.Content,
			RejectionReason: rw.RejectionReason,
			ModerationModel: rw.ModerationModel,
			CreatedAt:       rw.CreatedAt,
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}
