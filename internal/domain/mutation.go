package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mutation is a partial update of a task. Nil fields are left untouched.
type Mutation struct {
	Title         *string
	Description   *string
	Status        *TaskStatus
	Priority      *Priority
	AssigneeID    *uuid.UUID
	ClearAssignee bool
	Labels        *[]Label
	Attachments   *[]Attachment
	DueDate       *time.Time
	ClearDueDate  bool

	// By is the acting user; At is stamped by the ledger.
	By uuid.UUID
	At time.Time
}

// Validate rejects values outside the closed enums and empty titles.
func (m Mutation) Validate() error {
	if m.Title != nil && strings.TrimSpace(*m.Title) == "" {
		return fmt.Errorf("mutation: empty title: %w", ErrInvalidInput)
	}
	if m.Status != nil && !m.Status.Valid() {
		return fmt.Errorf("mutation: unknown status %q: %w", *m.Status, ErrInvalidInput)
	}
	if m.Priority != nil && !m.Priority.Valid() {
		return fmt.Errorf("mutation: unknown priority %q: %w", *m.Priority, ErrInvalidInput)
	}
	return nil
}

// ChangesStatus reports whether applying m to t moves it to another column.
func (m Mutation) ChangesStatus(t *Task) bool {
	return m.Status != nil && *m.Status != t.Status
}

// AssignTo is the mutation the balancer issues.
func AssignTo(userID uuid.UUID) Mutation {
	id := userID
	return Mutation{AssigneeID: &id}
}
