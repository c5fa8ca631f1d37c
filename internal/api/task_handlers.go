package api

import (
	"net/http"

	"github.com/darmiel/linkgate/internal/api/presenter"
)

// handleListTasks responds with the list of tasks and their statuses.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.taskManager.ListStatus(), http.StatusOK)
}

type TriggerTaskResponse struct {
	Status string `json:"status"`
}

const TriggerStatusTriggered = "triggered"

// handleTriggerTask starts a task run in the background.
func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.taskManager.Trigger(name); err != nil {
		presenter.Err(w, r, err, "cannot trigger task")
		return
	}
	presenter.JSON(w, r, TriggerTaskResponse{
		Status: TriggerStatusTriggered,
	}, http.StatusAccepted)
}

// handleLogsForTask retrieves logs for a specific task.
func (s *Server) handleLogsForTask(w http.ResponseWriter, r *http.Request) {
	logs, err := s.taskManager.GetLogs(r.PathValue("name"))
	if err != nil {
		presenter.Err(w, r, err, "cannot read task logs")
		return
	}
	presenter.JSON(w, r, logs, http.StatusOK)
}
