package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is one workspace task.
type Task struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Title     string     `json:"title"`
	Priority  string     `json:"priority"`
	Assignee  string     `json:"assignee,omitempty"`
	Urgent    bool       `json:"urgent"`
	Due       *time.Time `json:"due,omitempty"`
	Done      bool       `json:"done"`
	CreatedAt time.Time  `json:"created_at"`
}

// MemoryTaskService is an in-process TaskService.
type MemoryTaskService struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewMemoryTaskService() *MemoryTaskService {
	return &MemoryTaskService{tasks: make(map[string]*Task)}
}

func (s *MemoryTaskService) CreateTask(_ context.Context, in CreateTaskInput) Result {
	if in.Title == "" {
		return fail("A task needs a title.")
	}
	priority := in.Priority
	if priority == "" {
		priority = "medium"
	}

	t := &Task{
		ID:        uuid.NewString(),
		OwnerID:   in.OwnerID,
		Title:     in.Title,
		Priority:  priority,
		Assignee:  in.Assignee,
		Urgent:    in.Urgent,
		CreatedAt: time.Now().UTC(),
	}
	if in.HasDue {
		due := in.Due
		t.Due = &due
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	msg := fmt.Sprintf("Task %q created", t.Title)
	if t.Due != nil {
		msg += fmt.Sprintf(", due %s", t.Due.Format("2006-01-02"))
	}
	msg += "."
	return ok(msg, map[string]any{"task_id": t.ID})
}

func (s *MemoryTaskService) CompleteTask(_ context.Context, ownerID, taskID string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, found := s.tasks[taskID]
	if !found || t.OwnerID != ownerID {
		return fail(fmt.Sprintf("Task %s was not found.", taskID))
	}
	if t.Done {
		return fail(fmt.Sprintf("Task %q is already completed.", t.Title))
	}
	t.Done = true
	return ok(fmt.Sprintf("Task %q completed.", t.Title), map[string]any{"task_id": t.ID})
}

func (s *MemoryTaskService) DeleteTask(_ context.Context, ownerID, taskID string, force bool) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, found := s.tasks[taskID]
	if !found || t.OwnerID != ownerID {
		return fail(fmt.Sprintf("Task %s was not found.", taskID))
	}
	if !t.Done && !force {
		return fail(fmt.Sprintf("Task %q is not completed; pass force:true to delete it anyway.", t.Title))
	}
	delete(s.tasks, taskID)
	return ok(fmt.Sprintf("Task %q deleted.", t.Title), nil)
}

// Get returns a task by ID. Tests only.
func (s *MemoryTaskService) Get(taskID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, found := s.tasks[taskID]
	if !found {
		return Task{}, false
	}
	return *t, true
}
