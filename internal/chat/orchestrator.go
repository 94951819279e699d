package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Whalli/whalli-sub000/internal/cache"
	"github.com/Whalli/whalli-sub000/internal/command"
	"github.com/Whalli/whalli-sub000/internal/message"
	"github.com/Whalli/whalli-sub000/internal/observability"
	"github.com/Whalli/whalli-sub000/internal/policy"
	"github.com/Whalli/whalli-sub000/internal/protocol"
	"github.com/Whalli/whalli-sub000/internal/provider"
	"github.com/Whalli/whalli-sub000/internal/session"
	"github.com/Whalli/whalli-sub000/internal/workspace"
)

const (
	defaultTokenDelay = 10 * time.Millisecond
	defaultCacheTTL   = time.Hour
)

// Options wires the orchestrator's collaborators. Sessions, Messages, Cache,
// Registry, Policy and Catalog are required; the rest default.
type Options struct {
	Sessions  session.Store
	Messages  message.Store
	Cache     cache.Store
	Registry  *provider.Registry
	Policy    *policy.AccessPolicy
	Directory policy.Directory
	Tasks     workspace.TaskService
	Projects  workspace.ProjectService
	Catalog   map[string]ModelInfo
	Metrics   *observability.Metrics
	Logger    zerolog.Logger

	SessionTTL time.Duration
	CacheTTL   time.Duration
	// TokenDelay paces synthesized responses (cached or command results) so
	// they read like live generation. Zero disables pacing; negative keeps
	// the default.
	TokenDelay time.Duration
}

// Orchestrator runs the chat pipeline end to end. One StartSession call plus
// one StreamSession call make up a single exchange.
type Orchestrator struct {
	sessions  session.Store
	messages  message.Store
	cache     cache.Store
	registry  *provider.Registry
	policy    *policy.AccessPolicy
	directory policy.Directory
	tasks     workspace.TaskService
	projects  workspace.ProjectService
	catalog   map[string]ModelInfo
	metrics   *observability.Metrics
	log       zerolog.Logger

	sessionTTL time.Duration
	cacheTTL   time.Duration
	tokenDelay time.Duration
}

func New(opts Options) *Orchestrator {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.TokenDelay < 0 {
		opts.TokenDelay = defaultTokenDelay
	}
	if opts.Directory == nil {
		opts.Directory = policy.NewStaticDirectory(nil, opts.Policy.Lowest())
	}
	return &Orchestrator{
		sessions:   opts.Sessions,
		messages:   opts.Messages,
		cache:      opts.Cache,
		registry:   opts.Registry,
		policy:     opts.Policy,
		directory:  opts.Directory,
		tasks:      opts.Tasks,
		projects:   opts.Projects,
		catalog:    opts.Catalog,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		sessionTTL: opts.SessionTTL,
		cacheTTL:   opts.CacheTTL,
		tokenDelay: opts.TokenDelay,
	}
}

// StartInput carries one session creation request.
type StartInput struct {
	OwnerID        string
	ModelID        string
	Prompt         string
	ConversationID string
}

// StartSession checks tier access, records the prompt and creates the
// session. The prompt and the session are written exactly once each; the
// prompt text travels to StreamSession through the message store, never on
// the session record.
func (o *Orchestrator) StartSession(ctx context.Context, in StartInput) (*session.Session, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.ModelID) == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if _, ok := o.catalog[in.ModelID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, in.ModelID)
	}

	tier, err := o.directory.TierOf(ctx, in.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("resolving subscription tier: %w", err)
	}
	if !o.policy.Allowed(tier, in.ModelID) {
		denied := &AccessDeniedError{ModelID: in.ModelID, Tier: tier}
		if needed, ok := o.policy.MinTierFor(in.ModelID); ok {
			denied.Needed = needed
		}
		o.metrics.ObserveSessionEvent("denied")
		return nil, denied
	}

	s := session.New(in.OwnerID, in.ModelID, in.ConversationID, o.sessionTTL)

	err = o.messages.Save(ctx, message.Message{
		ID:             uuid.NewString(),
		OwnerID:        s.OwnerID,
		SessionID:      s.ID,
		ConversationID: s.ConversationID,
		ModelID:        s.ModelID,
		Role:           message.RoleUser,
		Content:        in.Prompt,
		CreatedAt:      s.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("recording prompt: %w", err)
	}
	if err := o.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	o.metrics.ObserveSessionEvent("started")
	o.log.Info().
		Str("session_id", s.ID).
		Str("owner_id", s.OwnerID).
		Str("model_id", s.ModelID).
		Msg("session started")
	return s, nil
}

// StreamSession produces the event stream for a previously started session.
// The channel always carries zero or more token events followed by exactly
// one terminal event and is then closed. Failures before the first token
// surface as a single error event; the caller never gets a Go error.
func (o *Orchestrator) StreamSession(ctx context.Context, sessionID, requesterID string) <-chan protocol.StreamEvent {
	out := make(chan protocol.StreamEvent)
	go func() {
		defer close(out)
		o.metrics.StreamStarted()
		defer o.metrics.StreamEnded()
		o.stream(ctx, sessionID, requesterID, out)
	}()
	return out
}

func (o *Orchestrator) stream(ctx context.Context, sessionID, requesterID string, out chan<- protocol.StreamEvent) {
	log := o.log.With().Str("session_id", sessionID).Logger()

	s, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Error().Err(err).Msg("session lookup failed")
		}
		o.emit(ctx, out, protocol.Error("session not found"))
		return
	}
	if s.OwnerID != requesterID {
		o.emit(ctx, out, protocol.Error("access denied"))
		return
	}
	if s.Expired(time.Now().UTC()) {
		o.metrics.ObserveSessionEvent("expired")
		o.emit(ctx, out, protocol.Error("session expired"))
		return
	}

	prompt, err := o.messages.LatestPrompt(ctx, s.OwnerID, s.ModelID, s.ConversationID)
	if err != nil {
		log.Error().Err(err).Msg("prompt lookup failed")
		o.emit(ctx, out, protocol.Error("no prompt recorded for this session"))
		return
	}

	if command.IsCommand(prompt.Content) {
		o.streamCommand(ctx, log, s, prompt.Content, out)
		return
	}
	o.streamCompletion(ctx, log, s, prompt.Content, out)
}

// streamCommand interprets a slash command and synthesizes the response.
// Parse and workspace failures are both recovered into an ordinary response
// with a leading cross mark; a command never ends the stream with an error
// event.
func (o *Orchestrator) streamCommand(ctx context.Context, log zerolog.Logger, s *session.Session, line string, out chan<- protocol.StreamEvent) {
	var text string
	cmd, err := command.Parse(line)
	switch {
	case err != nil:
		o.metrics.ObserveSessionEvent("command_rejected")
		text = "❌ " + err.Error()
	case cmd.Action == command.ActionHelp:
		text = command.HelpText()
	default:
		res := o.dispatch(ctx, s.OwnerID, cmd)
		if res.Success {
			text = "✅ " + res.Message
		} else {
			text = "❌ " + res.Message
		}
	}

	o.metrics.ObserveSessionEvent("command")
	if !o.emitText(ctx, out, text) {
		return
	}
	if err := o.persistAssistant(ctx, s, text); err != nil {
		log.Error().Err(err).Msg("persisting command response failed")
		o.emit(ctx, out, protocol.Error("failed to record response"))
		return
	}
	o.emit(ctx, out, protocol.Done())
}

func (o *Orchestrator) dispatch(ctx context.Context, ownerID string, cmd command.Command) workspace.Result {
	switch cmd.Action {
	case command.ActionTaskCreate:
		return o.tasks.CreateTask(ctx, workspace.CreateTaskInput{
			OwnerID:  ownerID,
			Title:    cmd.Task.Title,
			Due:      cmd.Task.Due,
			HasDue:   cmd.Task.HasDue,
			Priority: cmd.Task.Priority,
			Assignee: cmd.Task.Assignee,
			Urgent:   cmd.Task.Urgent,
		})
	case command.ActionTaskComplete:
		return o.tasks.CompleteTask(ctx, ownerID, cmd.Task.ID)
	case command.ActionTaskDelete:
		return o.tasks.DeleteTask(ctx, ownerID, cmd.Task.ID, cmd.Task.Force)
	case command.ActionProjectCreate:
		return o.projects.CreateProject(ctx, workspace.CreateProjectInput{
			OwnerID:     ownerID,
			Name:        cmd.Project.Name,
			Description: cmd.Project.Description,
		})
	case command.ActionProjectInvite:
		return o.projects.InviteMember(ctx, workspace.InviteMemberInput{
			OwnerID:   ownerID,
			ProjectID: cmd.Project.Project,
			Email:     cmd.Project.Email,
			Role:      cmd.Project.Role,
			Notify:    cmd.Project.Notify,
		})
	}
	return workspace.Result{Message: "Unsupported command."}
}

// streamCompletion serves a natural language prompt from cache when possible,
// otherwise relays the provider stream verbatim. On a miss the cache is
// populated before the assistant record is written so a concurrent identical
// prompt can hit it as early as possible.
func (o *Orchestrator) streamCompletion(ctx context.Context, log zerolog.Logger, s *session.Session, prompt string, out chan<- protocol.StreamEvent) {
	model, ok := o.catalog[s.ModelID]
	if !ok {
		log.Error().Str("model_id", s.ModelID).Msg("model missing from catalog")
		o.emit(ctx, out, protocol.Error("model not found"))
		return
	}

	key := cache.Fingerprint(s.ModelID, prompt)
	cached, found, err := o.cache.Get(ctx, key)
	if err != nil {
		// A failing cache never fails the stream; fall through as a miss.
		log.Warn().Err(err).Msg("cache lookup failed")
	}
	if found {
		o.metrics.ObserveCacheHit("response")
		if !o.emitText(ctx, out, cached) {
			return
		}
		if err := o.persistAssistant(ctx, s, cached); err != nil {
			log.Error().Err(err).Msg("persisting cached response failed")
			o.emit(ctx, out, protocol.Error("failed to record response"))
			return
		}
		o.emit(ctx, out, protocol.Done())
		return
	}
	o.metrics.ObserveCacheMiss("response")

	adapter, err := o.registry.ForVendor(model.Vendor)
	if err != nil {
		log.Error().Err(err).Str("vendor", model.Vendor).Msg("no adapter for vendor")
		o.emit(ctx, out, protocol.Error("provider request failed"))
		return
	}

	start := time.Now()
	chunks, err := adapter.StreamCompletion(ctx, s.ModelID, prompt)
	if err != nil {
		log.Error().Err(err).Str("vendor", model.Vendor).Msg("provider request failed")
		o.metrics.ObserveProviderRequest(s.ModelID, model.Vendor, "failure", time.Since(start))
		o.emit(ctx, out, protocol.Error("provider request failed"))
		return
	}

	// The request outcome is recorded however the relay ends.
	outcome := "success"
	defer func() {
		o.metrics.ObserveProviderRequest(s.ModelID, model.Vendor, outcome, time.Since(start))
	}()

	var full strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			// Root cause stays in the logs; the client sees a generic
			// failure. Nothing is cached or persisted.
			log.Error().Err(chunk.Err).Str("vendor", model.Vendor).Msg("provider stream failed")
			outcome = "failure"
			o.emit(ctx, out, protocol.Error("provider request failed"))
			return
		}
		if !o.emit(ctx, out, protocol.Token(chunk.Text)) {
			outcome = "canceled"
			return
		}
		full.WriteString(chunk.Text)
	}

	response := full.String()
	if err := o.cache.Set(ctx, key, response, o.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("cache populate failed")
	}
	// The provider call itself succeeded; a persist failure below does not
	// change its recorded outcome.
	if err := o.persistAssistant(ctx, s, response); err != nil {
		log.Error().Err(err).Msg("persisting response failed")
		o.emit(ctx, out, protocol.Error("failed to record response"))
		return
	}

	log.Info().
		Str("model_id", s.ModelID).
		Str("vendor", model.Vendor).
		Dur("elapsed", time.Since(start)).
		Int("bytes", len(response)).
		Msg("stream completed")
	o.emit(ctx, out, protocol.Done())
}

// ConversationMessages lists a conversation's transcript, newest last. A
// conversation belonging to someone else reads as not found.
func (o *Orchestrator) ConversationMessages(ctx context.Context, ownerID, conversationID string, limit int) ([]message.Message, error) {
	msgs, err := o.messages.ByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrConversationNotFound
	}
	for _, m := range msgs {
		if m.OwnerID != ownerID {
			return nil, ErrConversationNotFound
		}
	}
	return msgs, nil
}

func (o *Orchestrator) persistAssistant(ctx context.Context, s *session.Session, content string) error {
	return o.messages.Save(ctx, message.Message{
		ID:             uuid.NewString(),
		OwnerID:        s.OwnerID,
		SessionID:      s.ID,
		ConversationID: s.ConversationID,
		ModelID:        s.ModelID,
		Role:           message.RoleAssistant,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	})
}

// emitText streams text as per-character tokens with optional pacing.
func (o *Orchestrator) emitText(ctx context.Context, out chan<- protocol.StreamEvent, text string) bool {
	for _, r := range text {
		if !o.emit(ctx, out, protocol.Token(string(r))) {
			return false
		}
		if o.tokenDelay > 0 {
			select {
			case <-time.After(o.tokenDelay):
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}

func (o *Orchestrator) emit(ctx context.Context, out chan<- protocol.StreamEvent, evt protocol.StreamEvent) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
