package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the four board columns. Any valid status
// may follow any other; boards allow moving cards back and forth freely.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// DefaultBoard is the room used for tasks created without a board.
const DefaultBoard = "default"

type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Attachment struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Size       int64             `json:"size"`
	Metadata   map[string]string `json:"metadata,omitempty"` // original name, mimetype, uploader
	UploadedAt time.Time         `json:"uploaded_at"`
}

// TimeSession is one closed time-tracking interval reported by a user.
type TimeSession struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	UserID   uuid.UUID     `json:"user_id"`
}

type TimeTracking struct {
	Sessions  []TimeSession `json:"sessions"`
	TotalTime time.Duration `json:"total_time"`
}

type Task struct {
	ID           uuid.UUID    `json:"id"`
	Board        string       `json:"board"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Status       TaskStatus   `json:"status"`
	Priority     Priority     `json:"priority"`
	AssigneeID   *uuid.UUID   `json:"assignee_id,omitempty"`
	CreatedBy    uuid.UUID    `json:"created_by"`
	UpdatedBy    *uuid.UUID   `json:"updated_by,omitempty"`
	Labels       []Label      `json:"labels"`
	Attachments  []Attachment `json:"attachments"`
	TimeTracking TimeTracking `json:"time_tracking"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// InitialVersion is the version of a freshly created task.
const InitialVersion int64 = 1

// Active reports whether the task still counts towards its assignee's load.
func (t *Task) Active() bool {
	return t.Status != TaskStatusDone
}

// Clone returns a deep copy so stores can hand out snapshots that callers
// may mutate freely.
func (t *Task) Clone() *Task {
	c := *t
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		c.AssigneeID = &id
	}
	if t.UpdatedBy != nil {
		id := *t.UpdatedBy
		c.UpdatedBy = &id
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	c.Labels = append([]Label(nil), t.Labels...)
	c.Attachments = cloneAttachments(t.Attachments)
	c.TimeTracking.Sessions = append([]TimeSession(nil), t.TimeTracking.Sessions...)
	return &c
}

// Apply performs an accepted mutation: fields are overwritten, completedAt
// follows the status, and the version advances by exactly one. Callers must
// have checked the expected version and validated m.
func (t *Task) Apply(m Mutation) {
	if m.Title != nil {
		t.Title = *m.Title
	}
	if m.Description != nil {
		t.Description = *m.Description
	}
	if m.Status != nil {
		t.Status = *m.Status
	}
	if m.Priority != nil {
		t.Priority = *m.Priority
	}
	if m.ClearAssignee {
		t.AssigneeID = nil
	} else if m.AssigneeID != nil {
		id := *m.AssigneeID
		t.AssigneeID = &id
	}
	if m.Labels != nil {
		t.Labels = append([]Label{}, (*m.Labels)...)
	}
	if m.Attachments != nil {
		t.Attachments = cloneAttachments(*m.Attachments)
	}
	if m.ClearDueDate {
		t.DueDate = nil
	} else if m.DueDate != nil {
		d := *m.DueDate
		t.DueDate = &d
	}
	if m.By != uuid.Nil {
		by := m.By
		t.UpdatedBy = &by
	}

	t.syncCompletedAt(m.At)
	t.UpdatedAt = m.At
	t.Version++
}

// AppendSession records a closed time session and keeps the cached total in
// step with the session list. A session that would overflow the total fails
// with ErrInvalidDuration and leaves t unchanged.
func (t *Task) AppendSession(s TimeSession) error {
	if s.Duration <= 0 || s.Duration > math.MaxInt64-t.TimeTracking.TotalTime {
		return fmt.Errorf("session of %s on total %s: %w", s.Duration, t.TimeTracking.TotalTime, ErrInvalidDuration)
	}
	t.TimeTracking.Sessions = append(t.TimeTracking.Sessions, s)
	t.TimeTracking.TotalTime += s.Duration
	t.UpdatedAt = s.End
	if s.UserID != uuid.Nil {
		by := s.UserID
		t.UpdatedBy = &by
	}
	t.Version++
	return nil
}

func cloneAttachments(in []Attachment) []Attachment {
	out := make([]Attachment, len(in))
	for i, a := range in {
		out[i] = a
		if a.Metadata != nil {
			md := make(map[string]string, len(a.Metadata))
			for k, v := range a.Metadata {
				md[k] = v
			}
			out[i].Metadata = md
		}
	}
	return out
}

// syncCompletedAt stamps completedAt only on the transition into done and
// clears it whenever the task leaves done.
func (t *Task) syncCompletedAt(at time.Time) {
	if t.Status != TaskStatusDone {
		t.CompletedAt = nil
		return
	}
	if t.CompletedAt == nil {
		ts := at
		t.CompletedAt = &ts
	}
}

// NewTask builds a version-1 task from a creation request.
func NewTask(id uuid.UUID, board, title string, createdBy uuid.UUID, at time.Time) *Task {
	if board == "" {
		board = DefaultBoard
	}
	return &Task{
		ID:          id,
		Board:       board,
		Title:       title,
		Status:      TaskStatusTodo,
		Priority:    PriorityMedium,
		CreatedBy:   createdBy,
		Labels:      []Label{},
		Attachments: []Attachment{},
		Version:     InitialVersion,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}
