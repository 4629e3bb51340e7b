package management

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aios/autonomy-core/internal/agentrouter"
	"github.com/aios/autonomy-core/internal/goalstore"
	"github.com/aios/autonomy-core/pkg/api"
)

const maxRequestBody = 1 << 20 // 1MB, matches the teacher's web handler cap

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

// ── Goals ──

func (s *Server) handleSubmitGoal(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req api.SubmitGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	goalID := s.goals.Submit(req.Description, req.Priority, req.Source)
	if len(req.Metadata) > 0 {
		_ = s.goals.SetMetadata(goalID, req.Metadata)
	}
	tasks := s.planner.DecomposeGoal(goalID, req.Description)
	s.goals.AddTasks(goalID, tasks)

	log.Info().Str("goal_id", goalID).Int("tasks", len(tasks)).Msg("goal submitted")
	writeJSON(w, http.StatusCreated, api.SubmitGoalResponse{GoalID: goalID})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	goals, total := s.goals.ListGoals(q.Get("status"), limit, offset)
	writeJSON(w, http.StatusOK, api.GoalList{Goals: goals, Total: total})
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")
	goal := s.goals.GetGoal(goalID)
	if goal == nil {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}
	writeJSON(w, http.StatusOK, api.GoalDetail{
		Goal:     goal,
		Tasks:    s.goals.GetTasks(goalID),
		Messages: s.goals.GetMessages(goalID),
		Progress: s.goals.CalculateProgress(goalID),
	})
}

func (s *Server) handleCancelGoal(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")
	if err := s.goals.Cancel(goalID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": goalstore.GoalCancelled})
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	goalID := r.PathValue("id")
	if s.goals.GetGoal(goalID) == nil {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}

	var req api.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Sender == "" {
		req.Sender = goalstore.SenderUser
	}

	msgID := s.goals.AddMessage(goalID, req.Sender, req.Content)
	resumed := s.resumeAwaitingInput(goalID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message_id": msgID, "resumed_tasks": resumed})
}

// resumeAwaitingInput implements spec.md §6's post_goal_message clause: a
// posted message resumes every task of the goal currently awaiting_input
// back to pending, in both the durable store and the planner's working set.
// Only tasks actually in awaiting_input are touched, so a repeat call (or a
// goal with none) is a no-op — satisfying spec.md §8's "at most once per
// task currently awaiting_input".
func (s *Server) resumeAwaitingInput(goalID string) []string {
	var resumed []string
	for _, t := range s.goals.GetTasks(goalID) {
		if t.Status != goalstore.TaskAwaitingInput {
			continue
		}
		s.goals.UpdateTaskStatus(goalID, t.ID, goalstore.TaskPending)
		s.planner.ResumeTask(t.ID)
		resumed = append(resumed, t.ID)
	}
	return resumed
}

func (s *Server) handleSetGoalMetadata(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	goalID := r.PathValue("id")

	var req api.SetMetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.goals.SetMetadata(goalID, req.Metadata); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetGoalMetadata(w http.ResponseWriter, r *http.Request) {
	goalID := r.PathValue("id")
	if s.goals.GetGoal(goalID) == nil {
		writeError(w, http.StatusNotFound, "goal not found")
		return
	}
	writeJSON(w, http.StatusOK, api.MetadataResponse{Metadata: s.goals.GetMetadata(goalID)})
}

// ── Agents ──

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req api.RegisterAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	s.router.RegisterAgent(agentrouter.Registration{
		AgentID:        req.AgentID,
		AgentType:      req.AgentType,
		Capabilities:   req.Capabilities,
		ToolNamespaces: req.ToolNamespaces,
		Endpoint:       req.Endpoint,
		RegisteredAt:   time.Now().UTC().Unix(),
	})
	log.Info().Str("agent_id", req.AgentID).Msg("agent registered")
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (s *Server) handleUnregisterAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	s.router.UnregisterAgent(agentID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	agentID := r.PathValue("id")

	var req api.HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		req.Status = "idle"
	}

	s.router.UpdateHeartbeat(agentID, req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── Health ──

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthzResponse{
		Status:       "ok",
		UptimeSecs:   int64(time.Since(s.startTime).Seconds()),
		ActiveGoals:  s.goals.ActiveGoalCount(),
		ActiveAgents: s.router.ActiveAgentCount(),
	})
}
