// Package command interprets leading-slash chat input as workspace actions.
// Parsing is pure and deterministic: no I/O, a closed command table, and a
// name:value field grammar with quoted values.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Action identifies one operation in the closed command set.
type Action string

const (
	ActionTaskCreate    Action = "task.create"
	ActionTaskComplete  Action = "task.complete"
	ActionTaskDelete    Action = "task.delete"
	ActionProjectCreate Action = "project.create"
	ActionProjectInvite Action = "project.invite"
	ActionHelp          Action = "help"
)

// TaskArgs carries the validated fields of task.* actions.
type TaskArgs struct {
	ID       string
	Title    string
	Due      time.Time
	HasDue   bool
	Priority string
	Assignee string
	Urgent   bool
	Force    bool
}

// ProjectArgs carries the validated fields of project.* actions.
type ProjectArgs struct {
	Name        string
	Description string
	Project     string
	Email       string
	Role        string
	Notify      bool
}

// Command is the descriptor produced by Parse. Task is populated for task.*
// actions and Project for project.* actions; help carries neither.
type Command struct {
	Action  Action
	Task    TaskArgs
	Project ProjectArgs
}

// ParseError describes why a line was rejected. Field is empty when the line
// itself (not a specific field) is malformed.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

var ErrNotCommand = errors.New("input is not a slash command")

type fieldKind int

const (
	kindString fieldKind = iota
	kindDate
	kindEmail
	kindBool
	kindEnum
)

type fieldSpec struct {
	kind     fieldKind
	required bool
	allowed  []string
}

type commandSpec struct {
	action Action
	fields map[string]fieldSpec
}

var (
	priorities = []string{"low", "medium", "high", "urgent"}
	roles      = []string{"viewer", "editor", "admin"}

	// Basic address grammar. Deliverability is the mail system's problem.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// commandTable is the closed set of <category> <verb> pairs.
var commandTable = map[string]commandSpec{
	"task create": {action: ActionTaskCreate, fields: map[string]fieldSpec{
		"title":    {kind: kindString, required: true},
		"due":      {kind: kindDate},
		"priority": {kind: kindEnum, allowed: priorities},
		"assignee": {kind: kindEmail},
		"urgent":   {kind: kindBool},
	}},
	"task complete": {action: ActionTaskComplete, fields: map[string]fieldSpec{
		"id": {kind: kindString, required: true},
	}},
	"task delete": {action: ActionTaskDelete, fields: map[string]fieldSpec{
		"id":    {kind: kindString, required: true},
		"force": {kind: kindBool},
	}},
	"project create": {action: ActionProjectCreate, fields: map[string]fieldSpec{
		"name":        {kind: kindString, required: true},
		"description": {kind: kindString},
	}},
	"project invite": {action: ActionProjectInvite, fields: map[string]fieldSpec{
		"project": {kind: kindString, required: true},
		"email":   {kind: kindEmail, required: true},
		"role":    {kind: kindEnum, allowed: roles},
		"notify":  {kind: kindBool},
	}},
	"help": {action: ActionHelp, fields: map[string]fieldSpec{}},
}

// IsCommand reports whether the line should be routed through the
// interpreter at all.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Parse interprets one input line. The returned error is a *ParseError for
// lines that look like commands but fail the table or field validation, and
// ErrNotCommand for lines without the leading slash.
func Parse(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, ErrNotCommand
	}

	tokens, err := tokenize(trimmed[1:])
	if err != nil {
		return Command{}, err
	}
	if len(tokens) == 0 {
		return Command{}, &ParseError{Reason: "empty command"}
	}

	spec, rest, err := lookupSpec(tokens)
	if err != nil {
		return Command{}, err
	}

	values, err := parseFields(spec, rest)
	if err != nil {
		return Command{}, err
	}

	return buildCommand(spec.action, values)
}

func lookupSpec(tokens []string) (commandSpec, []string, error) {
	head := strings.ToLower(tokens[0])
	if spec, ok := commandTable[head]; ok {
		return spec, tokens[1:], nil
	}
	if len(tokens) >= 2 {
		pair := head + " " + strings.ToLower(tokens[1])
		if spec, ok := commandTable[pair]; ok {
			return spec, tokens[2:], nil
		}
	}
	return commandSpec{}, nil, &ParseError{Reason: fmt.Sprintf("unknown command %q", "/"+head)}
}

// tokenize splits the line on runs of whitespace. Double quotes group
// whitespace into a single token and are stripped, so title:"Buy milk"
// arrives as one token `title:Buy milk`.
func tokenize(s string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		inToken bool
		quoted  bool
	)
	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			inToken = true
		case !quoted && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quoted {
		return nil, &ParseError{Reason: "unterminated quote"}
	}
	flush()
	return tokens, nil
}

// parseFields scans name:value tokens left to right; field order is
// irrelevant and later duplicates are rejected.
func parseFields(spec commandSpec, tokens []string) (map[string]any, error) {
	values := make(map[string]any)
	for _, tok := range tokens {
		name, raw, ok := strings.Cut(tok, ":")
		if !ok || name == "" {
			return nil, &ParseError{Reason: fmt.Sprintf("expected name:value, got %q", tok)}
		}
		name = strings.ToLower(name)

		fs, known := spec.fields[name]
		if !known {
			return nil, &ParseError{Field: name, Reason: "unknown field"}
		}
		if _, dup := values[name]; dup {
			return nil, &ParseError{Field: name, Reason: "duplicate field"}
		}

		v, err := convertField(name, fs, raw)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}

	for name, fs := range spec.fields {
		if fs.required {
			if _, ok := values[name]; !ok {
				return nil, &ParseError{Field: name, Reason: "required field is missing"}
			}
		}
	}
	return values, nil
}

func convertField(name string, fs fieldSpec, raw string) (any, error) {
	if raw == "" {
		return nil, &ParseError{Field: name, Reason: "value must not be empty"}
	}
	switch fs.kind {
	case kindString:
		return raw, nil
	case kindDate:
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, &ParseError{Field: name, Reason: fmt.Sprintf("%q is not a date (want YYYY-MM-DD)", raw)}
		}
		return d, nil
	case kindEmail:
		if !emailPattern.MatchString(raw) {
			return nil, &ParseError{Field: name, Reason: fmt.Sprintf("%q is not a valid email address", raw)}
		}
		return strings.ToLower(raw), nil
	case kindBool:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, &ParseError{Field: name, Reason: fmt.Sprintf("%q is not a boolean (want true or false)", raw)}
		}
	case kindEnum:
		lowered := strings.ToLower(raw)
		for _, a := range fs.allowed {
			if lowered == a {
				return lowered, nil
			}
		}
		return nil, &ParseError{Field: name, Reason: fmt.Sprintf("%q is not one of %s", raw, strings.Join(fs.allowed, "|"))}
	default:
		return nil, &ParseError{Field: name, Reason: "unsupported field kind"}
	}
}

func buildCommand(action Action, values map[string]any) (Command, error) {
	cmd := Command{Action: action}
	str := func(k string) string {
		if v, ok := values[k].(string); ok {
			return v
		}
		return ""
	}
	boolean := func(k string) bool {
		v, _ := values[k].(bool)
		return v
	}

	switch action {
	case ActionTaskCreate, ActionTaskComplete, ActionTaskDelete:
		cmd.Task = TaskArgs{
			ID:       str("id"),
			Title:    str("title"),
			Priority: str("priority"),
			Assignee: str("assignee"),
			Urgent:   boolean("urgent"),
			Force:    boolean("force"),
		}
		if due, ok := values["due"].(time.Time); ok {
			cmd.Task.Due = due
			cmd.Task.HasDue = true
		}
	case ActionProjectCreate, ActionProjectInvite:
		cmd.Project = ProjectArgs{
			Name:        str("name"),
			Description: str("description"),
			Project:     str("project"),
			Email:       str("email"),
			Role:        str("role"),
			Notify:      boolean("notify"),
		}
		if action == ActionProjectInvite && cmd.Project.Role == "" {
			cmd.Project.Role = "viewer"
		}
	case ActionHelp:
	}
	return cmd, nil
}

// HelpText lists the command table for the /help synthetic response.
func HelpText() string {
	return strings.Join([]string{
		"Available commands:",
		`/task create title:"..." [due:YYYY-MM-DD] [priority:low|medium|high|urgent] [assignee:email] [urgent:true]`,
		"/task complete id:<task-id>",
		"/task delete id:<task-id> [force:true]",
		`/project create name:"..." [description:"..."]`,
		"/project invite project:<project-id> email:<address> [role:viewer|editor|admin] [notify:true]",
		"/help",
	}, "\n")
}
