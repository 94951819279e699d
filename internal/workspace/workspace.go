// Package workspace exposes the task and project operations the command path
// dispatches to. The streaming pipeline treats these as external
// collaborators with a narrow contract: every operation reports success or
// failure in the Result, never through an error that could end a stream.
package workspace

import (
	"context"
	"time"
)

// Result is the outcome of one workspace operation. Message is written for
// end users; it becomes the synthesized "✅/❌" chat response.
type Result struct {
	Success bool
	Message string
	Data    map[string]any
}

func ok(message string, data map[string]any) Result {
	return Result{Success: true, Message: message, Data: data}
}

func fail(message string) Result {
	return Result{Success: false, Message: message}
}

// CreateTaskInput carries the validated fields of /task create.
type CreateTaskInput struct {
	OwnerID  string
	Title    string
	Due      time.Time
	HasDue   bool
	Priority string
	Assignee string
	Urgent   bool
}

// TaskService is the tasks collaborator.
type TaskService interface {
	CreateTask(ctx context.Context, in CreateTaskInput) Result
	CompleteTask(ctx context.Context, ownerID, taskID string) Result
	DeleteTask(ctx context.Context, ownerID, taskID string, force bool) Result
}

// CreateProjectInput carries the validated fields of /project create.
type CreateProjectInput struct {
	OwnerID     string
	Name        string
	Description string
}

// InviteMemberInput carries the validated fields of /project invite.
type InviteMemberInput struct {
	OwnerID   string
	ProjectID string
	Email     string
	Role      string
	Notify    bool
}

// ProjectService is the projects collaborator.
type ProjectService interface {
	CreateProject(ctx context.Context, in CreateProjectInput) Result
	InviteMember(ctx context.Context, in InviteMemberInput) Result
}
