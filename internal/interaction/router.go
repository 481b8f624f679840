package interaction

import (
	"context"
	"sync"
	"time"

	"github.com/lalith-99/leaddesk/internal/models"
	"github.com/lalith-99/leaddesk/internal/workflow"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Authorizer answers the admin question.
type Authorizer interface {
	IsAdmin(ctx context.Context, actorID string) (bool, error)
}

// UserStore is the user side of the persistence gateway.
type UserStore interface {
	FindUsersByEnabledCategory(ctx context.Context, category models.Category) ([]models.UserProfile, error)
	UpsertUserPreferences(ctx context.Context, slackID string, prefs models.Preferences) (*models.UserProfile, error)
}

// AssignmentStore is the assignment side of the persistence gateway.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a models.Assignment) (bool, error)
	FindAssignmentByMessage(ctx context.Context, ref models.MessageRef) (*models.Assignment, error)
}

// Notifier performs the Slack-facing effects and reads back the current
// version of a lead message.
type Notifier interface {
	FetchLead(ctx context.Context, ref models.MessageRef) (slack.Message, error)
	UpdateLead(ctx context.Context, state models.MessageState) error
	DirectMessage(ctx context.Context, userID, text string) error
	ThreadReply(ctx context.Context, ref models.MessageRef, text string) error
	Ephemeral(ctx context.Context, channel, userID, text string) error
	OpenModal(ctx context.Context, triggerID string, modal slack.ModalViewRequest) error
	NotifyByEmail(ctx context.Context, email, text string) error
}

// HomePublisher rebuilds and publishes a user's home tab.
type HomePublisher interface {
	Publish(ctx context.Context, userID string) error
}

// AssignmentForwarder tells the website about new assignments.
type AssignmentForwarder interface {
	ForwardAssignment(ctx context.Context, a models.Assignment)
}

// Deps is everything the router talks to.
type Deps struct {
	Guard       Authorizer
	Users       UserStore
	Assignments AssignmentStore
	Notifier    Notifier
	Home        HomePublisher
	Website     AssignmentForwarder

	// WebsiteBaseURL, when set, adds a "View in Website" link to the full
	// application modal.
	WebsiteBaseURL string

	Logger *zap.Logger
	Now    func() time.Time

	// AckBudget is how long Handle waits for effects before returning the
	// acknowledgment anyway. Slack gives up on a callback after 3s.
	AckBudget time.Duration
}

const (
	defaultAckBudget = 2500 * time.Millisecond
	// effectsTimeout bounds the effects of one event once they run
	// detached from the callback request.
	effectsTimeout = 30 * time.Second
)

// Ack is what gets written back on the callback's HTTP response.
type Ack struct {
	// Response is set for view submissions that need one (field errors).
	Response *slack.ViewSubmissionResponse
}

type route struct {
	kind Kind
	id   ID
}

// handler computes the effects for one event. It may read (users,
// assignments) but never mutates anything outside the process. The
// returned Acknowledge is appended last by Dispatch.
type handler func(ctx context.Context, ev Event) ([]workflow.Effect, workflow.Acknowledge)

type Router struct {
	deps     Deps
	handlers map[route]handler
	logger   *zap.Logger
	inflight sync.WaitGroup
}

func NewRouter(deps Deps) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.AckBudget <= 0 {
		deps.AckBudget = defaultAckBudget
	}
	r := &Router{deps: deps, logger: deps.Logger}
	r.handlers = map[route]handler{
		{KindAction, ActionAssign}:          r.assignAction,
		{KindAction, ActionCountersign}:     r.countersignAction,
		{KindAction, ActionViewApplication}: r.viewApplicationAction,
		{KindAction, ActionReply}:           r.replyAction,
		{KindAction, ActionApprove}:         r.directDecisionAction(models.OutcomeAccepted),
		{KindAction, ActionReject}:          r.directDecisionAction(models.OutcomeRejected),
		{KindAction, ActionSavePreferences}: r.savePreferencesAction,

		{KindSubmission, SubmissionAssign}:      r.assignSubmission,
		{KindSubmission, SubmissionReply}:       r.replySubmission,
		{KindSubmission, SubmissionCountersign}: r.countersignSubmission,
	}
	return r
}

// Routed reports whether (kind, id) has a handler.
func (r *Router) Routed(kind Kind, id ID) bool {
	_, ok := r.handlers[route{kind, id}]
	return ok
}

// Dispatch computes the ordered effects for ev without performing any of
// them. The result always ends with exactly one Acknowledge; unrouted
// events get nothing else.
func (r *Router) Dispatch(ctx context.Context, ev Event) []workflow.Effect {
	h, ok := r.handlers[route{ev.Kind, ev.ID}]
	if !ok {
		r.logger.Debug("unrouted interaction",
			zap.Stringer("kind", ev.Kind),
			zap.String("id", string(ev.ID)),
		)
		return []workflow.Effect{workflow.Acknowledge{}}
	}

	effects, ack := h(ctx, ev)
	out := make([]workflow.Effect, 0, len(effects)+1)
	for _, e := range effects {
		if _, isAck := e.(workflow.Acknowledge); isAck {
			continue
		}
		out = append(out, e)
	}
	return append(out, ack)
}

// Handle dispatches ev and performs its effects in order. Failures are
// logged against the effect that caused them and do not stop later
// effects, except a duplicate assignment which ends the sequence.
//
// The effects run detached from ctx's cancellation. Handle returns the
// acknowledgment once they finish or once AckBudget has passed, whichever
// comes first; the rest keep running in the background.
func (r *Router) Handle(ctx context.Context, ev Event) Ack {
	log := r.logger.With(
		zap.Stringer("kind", ev.Kind),
		zap.String("id", string(ev.ID)),
		zap.String("actor", ev.ActorID()),
	)

	var ack Ack
	effects := r.Dispatch(ctx, ev)
	work := make([]workflow.Effect, 0, len(effects))
	for _, effect := range effects {
		if a, ok := effect.(workflow.Acknowledge); ok {
			ack = Ack{Response: a.Response}
			continue
		}
		work = append(work, effect)
	}
	if len(work) == 0 {
		return ack
	}

	done := make(chan struct{})
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer close(done)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), effectsTimeout)
		defer cancel()
		r.run(ctx, log, work)
	}()

	timer := time.NewTimer(r.deps.AckBudget)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		log.Warn("acknowledging before effects finished", zap.Duration("budget", r.deps.AckBudget))
	}
	return ack
}

func (r *Router) run(ctx context.Context, log *zap.Logger, effects []workflow.Effect) {
	halted := false
	for _, effect := range effects {
		if halted {
			log.Debug("effect skipped", zap.String("effect", effect.Name()))
			continue
		}
		stop, err := r.execute(ctx, effect)
		if err != nil {
			log.Error("effect failed", zap.String("effect", effect.Name()), zap.Error(err))
		}
		halted = stop
	}
}

// Wait blocks until the effects of every handled event have finished.
func (r *Router) Wait() {
	r.inflight.Wait()
}
