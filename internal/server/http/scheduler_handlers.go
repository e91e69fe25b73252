package httpserver

import (
	"net/http"

	"github.com/trialsignal/pharmacovigilance-service/internal/temporal"
)

// getSchedulerState handles GET /api/v1/scheduler. It queries the running
// scheduler workflow for its pass counters.
func (s *Server) getSchedulerState(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not configured")
		return
	}

	var state schedulerStateResponse
	err := s.scheduler.QueryWorkflow(r.Context(), temporal.SchedulerWorkflowID, "",
		temporal.QuerySchedulerState, &state)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// triggerSchedulerPass handles POST /api/v1/scheduler/run-now. It signals
// the scheduler workflow to wake up and run a pass immediately.
func (s *Server) triggerSchedulerPass(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not configured")
		return
	}

	err := s.scheduler.SignalWorkflow(r.Context(), temporal.SchedulerWorkflowID, "",
		temporal.SignalRunNow, nil)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}
