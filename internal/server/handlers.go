package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"assistant/internal/assistant"
	"assistant/internal/tasks"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// 所有错误路径统一返回 {"error": ...} / every error path returns {"error": ...}
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// sessionFor 根据 user 参数选择会话；为空时使用默认用户
// sessionFor picks the session from the user query parameter or JSON field,
// falling back to the configured default user.
func (s *Server) sessionFor(r *http.Request, bodyUser string) *assistant.Assistant {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		user = strings.TrimSpace(bodyUser)
	}
	return s.registry.Get(user)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		User    string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	a := s.sessionFor(r, req.User)
	response := a.Respond(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, map[string]string{
		"response":  response,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    "success",
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	a := s.sessionFor(r, "")
	var taskList []tasks.Task
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		taskList = a.TasksByStatus(status)
	} else {
		taskList = a.Tasks()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":      taskList,
		"tasks_text": tasks.Render(taskList),
		"count":      len(taskList),
	})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		Priority    string `json:"priority"`
		User        string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	a := s.sessionFor(r, req.User)
	task, err := a.AddTask(req.Description, req.Priority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "✅ Task added: '" + task.Description + "' (Priority: " + task.Priority + ")",
		"task":    task,
		"status":  "success",
	})
}

func taskID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	a := s.sessionFor(r, "")
	task, found := a.CompleteTask(id)
	if !found {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "🎉 Task completed: '" + task.Description + "'",
		"status":  "success",
	})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	a := s.sessionFor(r, "")
	if a.DeleteTask(id) == 0 {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Task deleted.",
		"status":  "success",
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	a := s.sessionFor(r, "")
	a.ClearHistory()
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "🧹 Conversation history cleared. Starting fresh!",
		"status":  "success",
	})
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	a := s.sessionFor(r, "")
	if err := a.SaveSession(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "💾 Session saved for " + a.UserName() + ".",
		"status":  "success",
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	a := s.sessionFor(r, "")
	writeJSON(w, http.StatusOK, map[string]string{"summary": a.Summary()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	a := s.sessionFor(r, "")
	hist := a.History()
	writeJSON(w, http.StatusOK, map[string]any{
		"history": hist,
		"count":   len(hist),
	})
}

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	a := s.sessionFor(r, "")
	writeJSON(w, http.StatusOK, map[string]any{"preferences": a.Preferences()})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		User  string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a := s.sessionFor(r, req.User)
	if err := a.SetPreference(req.Key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Preference set: " + strings.ToLower(strings.TrimSpace(req.Key)) + " = " + strings.TrimSpace(req.Value),
		"status":  "success",
	})
}
