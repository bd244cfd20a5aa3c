package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/utils/errutil"
)

type topicMemberResponse struct {
	wishResponse
	Probability float64 `json:"probability"`
}

type topicDetailResponse struct {
	topicResponse
	Wishes []topicMemberResponse `json:"wishes"`
}

type visualizationResponse struct {
	Run    *runResponse             `json:"run"`
	Points []*model.ProjectionPoint `json:"points"`
}

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	sort := types.TopicSortPopular
	if raw := r.URL.Query().Get("sort"); raw != "" {
		parsed, err := types.ParseTopicSort(raw)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}
		sort = parsed
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	summaries, err := s.uc.Topic.List(r.Context(), sort, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]topicResponse, len(summaries))
	for i, summary := range summaries {
		resp[i] = toTopicResponse(summary.Topic, summary.MemberCount)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) topicDetail(r *http.Request) (*topicDetailResponse, error) {
	detail, err := s.uc.Topic.Get(r.Context(), model.TopicID(chi.URLParam(r, "id")))
	if err != nil {
		return nil, err
	}

	members := make([]topicMemberResponse, len(detail.Members))
	for i, m := range detail.Members {
		members[i] = topicMemberResponse{
			wishResponse: toWishResponse(m.Wish),
			Probability:  m.Probability,
		}
	}
	return &topicDetailResponse{
		topicResponse: toTopicResponse(detail.Topic, len(detail.Members)),
		Wishes:        members,
	}, nil
}

func (s *Server) getTopic(w http.ResponseWriter, r *http.Request) {
	resp, err := s.topicDetail(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) listTopicWishes(w http.ResponseWriter, r *http.Request) {
	resp, err := s.topicDetail(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp.Wishes)
}

func (s *Server) getVisualization(w http.ResponseWriter, r *http.Request) {
	vis, err := s.uc.Topic.Visualization(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	points := vis.Points
	if points == nil {
		points = []*model.ProjectionPoint{}
	}
	writeJSON(w, r, http.StatusOK, visualizationResponse{
		Run:    toRunResponse(vis.Run),
		Points: points,
	})
}
