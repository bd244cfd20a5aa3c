package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/utils/errutil"
)

type startRunResponse struct {
	Status  string `json:"status"`
	Trigger string `json:"trigger"`
}

type statsResponse struct {
	TotalWishes      int          `json:"total_wishes"`
	UnassignedWishes int          `json:"unassigned_wishes"`
	ActiveTopics     int          `json:"active_topics"`
	LatestRun        *runResponse `json:"latest_run"`
	TrainingRunning  bool         `json:"training_running"`
	SchedulerEnabled bool         `json:"scheduler_enabled"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if _, err := s.uc.Training.Start(r.Context(), types.TriggerManual); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, startRunResponse{
		Status:  "started",
		Trigger: types.TriggerManual.String(),
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := pageSize(r)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	runs, err := s.uc.Training.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]*runResponse, len(runs))
	for i, run := range runs {
		resp[i] = toRunResponse(run)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) getLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.uc.Training.LatestRun(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRunResponse(run))
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.uc.Training.GetRun(r.Context(), model.ModelUpdateID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRunResponse(run))
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.uc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, statsResponse{
		TotalWishes:      stats.TotalWishes,
		UnassignedWishes: stats.UnassignedWishes,
		ActiveTopics:     stats.ActiveTopics,
		LatestRun:        toRunResponse(stats.LatestRun),
		TrainingRunning:  stats.TrainingRunning,
		SchedulerEnabled: stats.SchedulerEnabled,
	})
}
