package command

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseTaskCreate(t *testing.T) {
	cmd, err := Parse(`/task create title:"Buy milk"`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Action != ActionTaskCreate {
		t.Fatalf("Action = %q, want %q", cmd.Action, ActionTaskCreate)
	}
	if cmd.Task.Title != "Buy milk" {
		t.Fatalf("Title = %q, want %q", cmd.Task.Title, "Buy milk")
	}
	if cmd.Task.Urgent {
		t.Fatalf("Urgent should default to false")
	}
}

func TestParseTaskCreateAllFields(t *testing.T) {
	cmd, err := Parse(`/task create   title:"Ship the   release" due:2099-01-01 priority:HIGH assignee:Dev@Example.COM urgent:true`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Task.Title != "Ship the   release" {
		t.Fatalf("Title = %q", cmd.Task.Title)
	}
	if !cmd.Task.HasDue || !cmd.Task.Due.Equal(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Due = %v hasDue=%v", cmd.Task.Due, cmd.Task.HasDue)
	}
	if cmd.Task.Priority != "high" {
		t.Fatalf("Priority = %q, want high", cmd.Task.Priority)
	}
	if cmd.Task.Assignee != "dev@example.com" {
		t.Fatalf("Assignee = %q", cmd.Task.Assignee)
	}
	if !cmd.Task.Urgent {
		t.Fatalf("Urgent = false, want true")
	}
}

func TestParseFieldOrderIrrelevant(t *testing.T) {
	a, err := Parse(`/task create due:2099-01-01 title:"X"`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	b, err := Parse(`/task create title:"X" due:2099-01-01`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if a != b {
		t.Fatalf("field order changed the result: %+v vs %+v", a, b)
	}
}

func TestParseHelp(t *testing.T) {
	cmd, err := Parse("/help")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Action != ActionHelp {
		t.Fatalf("Action = %q, want help", cmd.Action)
	}
	if cmd.Task != (TaskArgs{}) || cmd.Project != (ProjectArgs{}) {
		t.Fatalf("help must carry no data: %+v", cmd)
	}
}

func TestParseProjectInviteDefaults(t *testing.T) {
	cmd, err := Parse(`/project invite project:p-1 email:ana@example.org`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cmd.Project.Role != "viewer" {
		t.Fatalf("Role = %q, want viewer default", cmd.Project.Role)
	}
	if cmd.Project.Notify {
		t.Fatalf("Notify should default to false")
	}
}

func TestParseRejections(t *testing.T) {
	cases := []struct {
		name       string
		line       string
		wantReason string
	}{
		{"missing title", `/task create due:2099-01-01`, "required field is missing"},
		{"bad date", `/task create title:"X" due:not-a-date`, "not a date"},
		{"bad email", `/project invite project:p email:nope`, "not a valid email"},
		{"bad priority", `/task create title:"X" priority:asap`, "not one of low|medium|high|urgent"},
		{"bad role", `/project invite project:p email:a@b.co role:owner`, "not one of viewer|editor|admin"},
		{"bad bool", `/task delete id:t force:yes`, "not a boolean"},
		{"unknown command", `/task explode id:t`, "unknown command"},
		{"unknown field", `/task complete id:t color:red`, "unknown field"},
		{"duplicate field", `/task complete id:a id:b`, "duplicate field"},
		{"bare token", `/task create title`, "expected name:value"},
		{"empty value", `/task create title:""`, "must not be empty"},
		{"unterminated quote", `/task create title:"Buy`, "unterminated quote"},
		{"empty command", `/`, "empty command"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.line)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(%q) error = %v, want *ParseError", tc.line, err)
			}
			if !strings.Contains(perr.Error(), tc.wantReason) {
				t.Fatalf("Parse(%q) error = %q, want mention of %q", tc.line, perr.Error(), tc.wantReason)
			}
		})
	}
}

func TestParseNonCommandLine(t *testing.T) {
	_, err := Parse("tell me a joke")
	if !errors.Is(err, ErrNotCommand) {
		t.Fatalf("err = %v, want ErrNotCommand", err)
	}
	if IsCommand("tell me a joke") {
		t.Fatalf("IsCommand should be false for natural language")
	}
	if !IsCommand("   /help") {
		t.Fatalf("IsCommand should trim leading whitespace")
	}
}

func TestParseErrorMentionsDateField(t *testing.T) {
	_, err := Parse(`/task create title:"X" due:not-a-date`)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("want *ParseError, got %v", err)
	}
	if perr.Field != "due" {
		t.Fatalf("Field = %q, want due", perr.Field)
	}
}
