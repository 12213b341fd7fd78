package tasks

import (
	"fmt"
	"strings"
	"time"
)

// 任务状态 / Task status values
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// 任务优先级 / Task priority values
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task 单个任务条目；Completed 仅在 Status 为 completed 时非空
// Task is a single task entry. Completed is set iff Status is completed.
type Task struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	Created     string `json:"created"`
	Completed   string `json:"completed,omitempty"`
}

// Store 会话内的有序任务列表。ID 由单调递增计数器分配，
// 与当前列表长度无关，删除后不会复用。
// Store is the in-memory ordered task list for one session. IDs come from a
// monotonically increasing counter independent of the list length, so they
// are never reused after deletion.
type Store struct {
	tasks  []Task
	nextID int
}

// NewStore creates an empty task store.
func NewStore() *Store {
	return &Store{nextID: 1}
}

// Add appends a pending task with the next sequential id and returns it.
// The description must be non-empty; priority is normalized with a medium
// default.
func (s *Store) Add(description, priority string) (Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Task{}, fmt.Errorf("task description is empty")
	}
	task := Task{
		ID:          s.nextID,
		Description: description,
		Priority:    NormalizePriority(priority),
		Status:      StatusPending,
		Created:     time.Now().UTC().Format(time.RFC3339),
	}
	s.nextID++
	s.tasks = append(s.tasks, task)
	return task, nil
}

// All returns a copy of the full ordered task list.
func (s *Store) All() []Task {
	return append([]Task(nil), s.tasks...)
}

// Filter returns the tasks matching the given status, in creation order.
func (s *Store) Filter(status string) []Task {
	status = NormalizeStatus(status)
	out := []Task{}
	for _, task := range s.tasks {
		if task.Status == status {
			out = append(out, task)
		}
	}
	return out
}

// Complete 标记任务完成；重复调用保持首次的完成时间不变
// Complete marks the first task with the given id completed. Calling it again
// leaves the status and the original completion timestamp unchanged. The
// second result is false when no task matches.
func (s *Store) Complete(id int) (Task, bool) {
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		if s.tasks[i].Status != StatusCompleted {
			s.tasks[i].Status = StatusCompleted
			s.tasks[i].Completed = time.Now().UTC().Format(time.RFC3339)
		}
		return s.tasks[i], true
	}
	return Task{}, false
}

// Delete removes every task with the given id and reports how many were
// removed. A miss is a no-op, not an error.
func (s *Store) Delete(id int) int {
	kept := s.tasks[:0]
	removed := 0
	for _, task := range s.tasks {
		if task.ID == id {
			removed++
			continue
		}
		kept = append(kept, task)
	}
	s.tasks = kept
	return removed
}

// Clear empties the list. The id counter keeps advancing.
func (s *Store) Clear() {
	s.tasks = s.tasks[:0]
}

// Len returns the total task count.
func (s *Store) Len() int {
	return len(s.tasks)
}

// PendingCount returns how many tasks are still pending.
func (s *Store) PendingCount() int {
	n := 0
	for _, task := range s.tasks {
		if task.Status == StatusPending {
			n++
		}
	}
	return n
}

// Load 从持久化记录恢复任务列表，并将计数器推进到已有最大 ID 之后
// Load restores tasks from a persisted record and advances the id counter
// past the largest restored id.
func (s *Store) Load(tasks []Task) {
	s.tasks = s.tasks[:0]
	maxID := 0
	for _, task := range tasks {
		task.Priority = NormalizePriority(task.Priority)
		task.Status = NormalizeStatus(task.Status)
		s.tasks = append(s.tasks, task)
		if task.ID > maxID {
			maxID = task.ID
		}
	}
	s.nextID = maxID + 1
	if s.nextID < 1 {
		s.nextID = 1
	}
}

// Render 渲染任务列表：状态与优先级映射为固定的符号
// Render formats tasks for display, mapping status and priority to fixed
// glyphs: completed ✅ / pending ⏳, high 🔴 / medium 🟡 / low 🟢.
func Render(tasks []Task) string {
	if len(tasks) == 0 {
		return "You don't have any tasks yet. Would you like to add some?"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Your Tasks (%d total):\n\n", len(tasks))
	for _, task := range tasks {
		fmt.Fprintf(&b, "%s %s %d. %s\n", statusGlyph(task.Status), priorityGlyph(task.Priority), task.ID, task.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusGlyph(status string) string {
	if status == StatusCompleted {
		return "✅"
	}
	return "⏳"
}

func priorityGlyph(priority string) string {
	switch priority {
	case PriorityHigh:
		return "🔴"
	case PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

// NormalizePriority lower-cases and defaults unknown priorities to medium.
func NormalizePriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// NormalizeStatus lower-cases and defaults unknown statuses to pending.
func NormalizeStatus(status string) string {
	if strings.ToLower(strings.TrimSpace(status)) == StatusCompleted {
		return StatusCompleted
	}
	return StatusPending
}
