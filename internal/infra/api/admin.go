package api

import (
	"net/http"
	"strconv"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/infra/logging"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := model.TaskStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tasks, err := s.fulfillUC.ListTasks(r.Context(), status, limit)
	if err != nil {
		code, msg := statusFor(err)
		writeError(w, code, msg)
		return
	}
	if tasks == nil {
		tasks = []*model.FulfillmentTask{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": tasks})
}

func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	t, err := s.fulfillUC.Retry(r.Context(), id)
	if err != nil {
		code, msg := statusFor(err)
		writeError(w, code, msg)
		return
	}
	logging.With(r.Context(), s.log).Info().Int64("task_id", id).Msg("task requeued by admin")
	writeJSON(w, http.StatusAccepted, t)
}

func (s *Server) handleOrderQR(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	t, err := s.fulfillUC.EnqueueOrderQR(r.Context(), id)
	if err != nil {
		code, msg := statusFor(err)
		writeError(w, code, msg)
		return
	}
	writeJSON(w, http.StatusAccepted, t)
}
