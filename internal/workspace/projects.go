package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Project is one workspace project with its member roster.
type Project struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Members     map[string]string `json:"members"` // email -> role
	CreatedAt   time.Time         `json:"created_at"`
}

// MemoryProjectService is an in-process ProjectService.
type MemoryProjectService struct {
	mu       sync.Mutex
	projects map[string]*Project
}

func NewMemoryProjectService() *MemoryProjectService {
	return &MemoryProjectService{projects: make(map[string]*Project)}
}

func (s *MemoryProjectService) CreateProject(_ context.Context, in CreateProjectInput) Result {
	if in.Name == "" {
		return fail("A project needs a name.")
	}

	p := &Project{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Description: in.Description,
		Members:     make(map[string]string),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.projects[p.ID] = p
	s.mu.Unlock()

	return ok(fmt.Sprintf("Project %q created.", p.Name), map[string]any{"project_id": p.ID})
}

func (s *MemoryProjectService) InviteMember(_ context.Context, in InviteMemberInput) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found := s.projects[in.ProjectID]
	if !found || p.OwnerID != in.OwnerID {
		return fail(fmt.Sprintf("Project %s was not found.", in.ProjectID))
	}
	if _, already := p.Members[in.Email]; already {
		return fail(fmt.Sprintf("%s is already a member of %q.", in.Email, p.Name))
	}

	role := in.Role
	if role == "" {
		role = "viewer"
	}
	p.Members[in.Email] = role

	msg := fmt.Sprintf("Invited %s to %q as %s.", in.Email, p.Name, role)
	return ok(msg, map[string]any{"project_id": p.ID, "role": role})
}

// Get returns a project by ID. Tests only.
func (s *MemoryProjectService) Get(projectID string) (Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.projects[projectID]
	if !found {
		return Project{}, false
	}
	cp := *p
	return cp, true
}
