// Package dialogue is the top-level intent dispatcher. Every recognized
// intent maps to a create, find, selection, confirmation or chit-chat path;
// all user-facing failures stay conversational and return a normal response.
package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikilabs/kiki-reminders/internal/convctx"
	"github.com/kikilabs/kiki-reminders/internal/dialogflow"
	"github.com/kikilabs/kiki-reminders/internal/disambig"
	"github.com/kikilabs/kiki-reminders/internal/flow"
	"github.com/kikilabs/kiki-reminders/internal/model"
	"github.com/kikilabs/kiki-reminders/internal/reminders"
	"github.com/kikilabs/kiki-reminders/internal/timeparse"
)

// User-facing copy. Kept as constants so handlers and tests agree on the
// exact wording.
const (
	msgSomethingWentWrong = "Sorry, something went wrong on my end. Could you try that again?"
	msgAskTask            = "What should I remind you about?"
	msgAskTaskAndTime     = "What should I remind you about, and when?"
	msgBadTime            = "I couldn't make sense of that time. Try something like '8pm tomorrow' or 'July 3 at 10am'."
	msgAskSelection       = "Sorry, I didn't catch that. Please answer with a number from the list, like 1 or 2."
	msgNoSelectionPending = "I'm not sure which reminders you mean. Could you tell me again what you'd like to do?"
	msgNoUpdatePending    = "I'm not sure which reminder you want to move. Could you start the update again?"
	msgSmalltalkFallback  = "I'm better with reminders than small talk. Want me to set one up for you?"
	msgFallback           = "Sorry, I didn't get that. You can ask me to set, move or delete a reminder."
	msgConfirmHint        = "I just need a yes or no on the pending question."
)

// placeholderTasks are slot values with no content; storing them literally
// would create reminders nobody can find again.
var placeholderTasks = map[string]bool{
	"a reminder": true,
	"reminder":   true,
	"reminders":  true,
	"remind me":  true,
	"something":  true,
	"it":         true,
	"this":       true,
	"that":       true,
}

// slotLifespan keeps a stashed half-answer (task without time or the
// reverse) alive for two turns.
const slotLifespan = 2

// ChatService relays free-form utterances to an external completion model.
type ChatService interface {
	Complete(ctx context.Context, text string) (string, error)
}

// Router dispatches one webhook turn to the matching sub-flow.
type Router struct {
	svc   *reminders.Service
	flows *flow.Controller
	chat  ChatService
	loc   *time.Location
	log   zerolog.Logger
}

// NewRouter builds a router. chat may be nil; small talk then gets a fixed
// deflection instead of a model call.
func NewRouter(svc *reminders.Service, chat ChatService, loc *time.Location, log zerolog.Logger) *Router {
	return &Router{
		svc:   svc,
		flows: flow.NewController(svc, loc),
		chat:  chat,
		loc:   loc,
		log:   log.With().Str("component", "dialogue").Logger(),
	}
}

// Handle fulfills one dialogue turn. It never returns an error: internal
// failures are logged and turned into an apologetic reply so the assistant
// stays responsive.
func (r *Router) Handle(ctx context.Context, req *dialogflow.WebhookRequest) *dialogflow.WebhookResponse {
	cs := convctx.New(req)
	intent := req.QueryResult.Intent.DisplayName

	owner, err := r.svc.ResolveOwner(ctx, req.Session, req.OwnerHint())
	if err != nil {
		r.log.Error().Stack().Err(err).Str("intent", intent).Msg("owner resolution failed")
		return dialogflow.NewResponse(msgSomethingWentWrong, nil)
	}

	msg, err := r.dispatch(ctx, cs, owner, req)
	if err != nil {
		r.log.Error().Stack().Err(err).Str("intent", intent).Msg("turn failed")
		return dialogflow.NewResponse(msgSomethingWentWrong, nil)
	}

	r.log.Debug().Str("intent", intent).Str("owner", owner).Msg("turn fulfilled")
	return dialogflow.NewResponse(msg, cs.Output())
}

func (r *Router) dispatch(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest) (string, error) {
	intent := req.QueryResult.Intent.DisplayName
	switch intent {
	case "set.reminder":
		return r.handleCreate(ctx, cs, owner, req)
	case "CaptureTaskIntent":
		return r.handleCaptureTask(ctx, cs, owner, req)
	case "CaptureTimeIntent":
		return r.handleCaptureTime(ctx, cs, owner, req)
	case "delete.reminder":
		return r.handleDelete(ctx, cs, owner, req)
	case "delete.reminder - yes":
		return r.flows.ConfirmDelete(ctx, cs, owner)
	case "delete.reminder - no":
		return r.flows.CancelDelete(cs), nil
	case "update.reminder":
		return r.handleUpdate(ctx, cs, owner, req)
	case "update.reminder_new_time":
		return r.handleUpdateNewTime(cs, req)
	case "update.reminder - yes":
		return r.flows.ConfirmUpdate(ctx, cs, owner)
	case "update.reminder - no":
		return r.flows.CancelUpdate(cs), nil
	case "select.reminder_to_manage_delete":
		return r.handleSelection(ctx, cs, owner, req, flow.TagDeleteSelection)
	case "select.reminder_to_manage_update":
		return r.handleSelection(ctx, cs, owner, req, flow.TagUpdateSelection)
	}
	if strings.HasPrefix(intent, "smalltalk") {
		return r.handleSmalltalk(ctx, req), nil
	}
	return r.handleFallback(cs), nil
}

// handleCreate starts a new reminder. A missing slot stashes the known one
// in a short-lived context and asks for the other half.
func (r *Router) handleCreate(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest) (string, error) {
	task := reminders.NormalizeTask(stringSlot(req, "task"))
	at, timeErr := timeSlot(req, "date-time")

	if task != "" && placeholderTasks[task] {
		task = ""
	}

	switch {
	case task == "" && at == nil:
		if timeErr != nil {
			return msgBadTime, nil
		}
		r.flows.ClearAll(cs)
		cs.Emit(flow.TagAwaitingTask, slotLifespan, nil)
		return msgAskTaskAndTime, nil
	case at == nil:
		r.flows.ClearAll(cs)
		cs.Emit(flow.TagAwaitingTime, slotLifespan, map[string]string{"task": task})
		if timeErr != nil {
			return msgBadTime, nil
		}
		return "Okay! When should I remind you to '" + task + "'?", nil
	case task == "":
		r.flows.ClearAll(cs)
		cs.Emit(flow.TagAwaitingTask, slotLifespan, map[string]string{
			"time": at.Format(time.RFC3339),
		})
		return msgAskTask, nil
	}
	return r.createReminder(ctx, cs, owner, task, *at)
}

// handleCaptureTask supplies a task to a create that was waiting for one.
func (r *Router) handleCaptureTask(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest) (string, error) {
	task := reminders.NormalizeTask(stringSlot(req, "task"))
	if task == "" {
		task = reminders.NormalizeTask(req.QueryResult.QueryText)
	}
	if task == "" || placeholderTasks[task] {
		return msgAskTask, nil
	}

	rawTime, ok := cs.Param(flow.TagAwaitingTask, "time")
	if !ok {
		// no stashed time; flip to the other half of the question
		cs.Clear(flow.TagAwaitingTask)
		cs.Emit(flow.TagAwaitingTime, slotLifespan, map[string]string{"task": task})
		return "Okay! When should I remind you to '" + task + "'?", nil
	}
	at, err := time.Parse(time.RFC3339, rawTime)
	if err != nil {
		cs.Clear(flow.TagAwaitingTask)
		cs.Emit(flow.TagAwaitingTime, slotLifespan, map[string]string{"task": task})
		return "Okay! When should I remind you to '" + task + "'?", nil
	}
	return r.createReminder(ctx, cs, owner, task, at)
}

// handleCaptureTime supplies a time to a create that was waiting for one.
func (r *Router) handleCaptureTime(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest) (string, error) {
	at, err := timeSlot(req, "date-time")
	if err != nil || at == nil {
		return msgBadTime, nil
	}

	task, ok := cs.Param(flow.TagAwaitingTime, "task")
	if !ok || task == "" {
		cs.Clear(flow.TagAwaitingTime)
		cs.Emit(flow.TagAwaitingTask, slotLifespan, map[string]string{
			"time": at.Format(time.RFC3339),
		})
		return msgAskTask, nil
	}
	return r.createReminder(ctx, cs, owner, task, *at)
}

func (r *Router) createReminder(ctx context.Context, cs *convctx.Set, owner, task string, at time.Time) (string, error) {
	rem, err := r.svc.Create(ctx, owner, task, at)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			return msgAskTaskAndTime, nil
		}
		return "", err
	}
	r.flows.ClearAll(cs)
	return "Got it! I'll remind you to '" + rem.Task + "' at " +
		timeparse.FormatDisplay(rem.RemindAt, r.loc) + ".", nil
}

// handleDelete resolves the target of a deletion: none, one, or a numbered
// choice the user must answer on the next turn.
func (r *Router) handleDelete(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest) (string, error) {
	res, prompt, err := r.findTarget(ctx, cs, owner, req, "delete")
	if prompt != "" || err != nil {
		return prompt, err
	}
	switch res.Kind {
	case disambig.Unique:
		return r.flows.BeginDelete(cs, res.Reminder), nil
	default:
		enc, err := disambig.EncodeCandidates(res.Candidates)
		if err != nil {
			return "", err
		}
		r.flows.ClearAll(cs)
		cs.Emit(flow.TagDeleteSelection, slotLifespan, map[string]string{
			"candidates": enc,
			"action":     string(flow.ActionDelete),
		})
		return disambig.Prompt(res.Candidates, "delete"), nil
	}
}

// handleUpdate resolves the target of a time change. The new time may come
// along in the same utterance or be asked for afterwards.
func (r *Router) handleUpdate(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest) (string, error) {
	newAt, err := timeSlot(req, "new-date-time")
	if err != nil {
		return msgBadTime, nil
	}

	res, prompt, err := r.findTarget(ctx, cs, owner, req, "move")
	if prompt != "" || err != nil {
		return prompt, err
	}
	switch res.Kind {
	case disambig.Unique:
		return r.flows.BeginUpdate(cs, res.Reminder, newAt), nil
	default:
		enc, err := disambig.EncodeCandidates(res.Candidates)
		if err != nil {
			return "", err
		}
		params := map[string]string{
			"candidates": enc,
			"action":     string(flow.ActionUpdateNeedsTime),
		}
		if newAt != nil {
			params["action"] = string(flow.ActionUpdate)
			params["new_time"] = newAt.Format(time.RFC3339)
		}
		r.flows.ClearAll(cs)
		cs.Emit(flow.TagUpdateSelection, slotLifespan, params)
		return disambig.Prompt(res.Candidates, "move"), nil
	}
}

// findTarget runs the shared find step for delete and update. A non-empty
// prompt short-circuits the caller (bad input or nothing found).
func (r *Router) findTarget(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest, verb string) (disambig.Resolution, string, error) {
	task := reminders.NormalizeTask(stringSlot(req, "task"))
	if placeholderTasks[task] {
		task = ""
	}
	at, err := timeSlot(req, "date-time")
	if err != nil {
		return disambig.Resolution{}, msgBadTime, nil
	}

	matches, err := r.svc.FindCandidates(ctx, owner, task, at)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			return disambig.Resolution{}, "Which reminder would you like me to " + verb + "?", nil
		}
		return disambig.Resolution{}, "", err
	}

	res := disambig.Resolve(matches, r.loc)
	if res.Kind == disambig.None {
		if task != "" {
			return res, "I couldn't find a pending reminder to '" + task + "'.", nil
		}
		return res, "I couldn't find a matching reminder.", nil
	}
	return res, "", nil
}

// handleSelection answers a numbered-list question from a previous turn.
func (r *Router) handleSelection(ctx context.Context, cs *convctx.Set, owner string, req *dialogflow.WebhookRequest, tag string) (string, error) {
	enc, ok := cs.Param(tag, "candidates")
	if !ok {
		return msgNoSelectionPending, nil
	}
	cands, err := disambig.DecodeCandidates(enc)
	if err != nil || len(cands) == 0 {
		r.flows.ClearAll(cs)
		return msgNoSelectionPending, nil
	}
	action, _ := cs.Param(tag, "action")
	stashedTime, _ := cs.Param(tag, "new_time")

	indexText := stringSlot(req, "number")
	if indexText == "" {
		indexText = strings.TrimSpace(req.QueryResult.QueryText)
	}
	selAt, timeErr := timeSlot(req, "date-time")
	if timeErr != nil {
		selAt = nil
	}

	chosen, ok := disambig.Select(cands, indexText, selAt, r.loc)
	if !ok {
		// keep the list alive and ask again
		params := map[string]string{"candidates": enc, "action": action}
		if stashedTime != "" {
			params["new_time"] = stashedTime
		}
		cs.Emit(tag, slotLifespan, params)
		return msgAskSelection, nil
	}

	rem, err := r.svc.Get(ctx, owner, chosen.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.flows.ClearAll(cs)
			return "Hmm, the reminder to '" + chosen.Task + "' seems to be gone already.", nil
		}
		return "", err
	}

	switch flow.Action(action) {
	case flow.ActionDelete:
		return r.flows.BeginDelete(cs, rem), nil
	case flow.ActionUpdate:
		if newAt, err := time.Parse(time.RFC3339, stashedTime); err == nil {
			return r.flows.BeginUpdate(cs, rem, &newAt), nil
		}
		return r.flows.BeginUpdate(cs, rem, nil), nil
	case flow.ActionUpdateNeedsTime:
		return r.flows.BeginUpdate(cs, rem, nil), nil
	default:
		r.flows.ClearAll(cs)
		return msgNoSelectionPending, nil
	}
}

// handleUpdateNewTime answers the "what time should I move it to" question.
func (r *Router) handleUpdateNewTime(cs *convctx.Set, req *dialogflow.WebhookRequest) (string, error) {
	at, err := timeSlot(req, "date-time")
	if err != nil || at == nil {
		if at2, err2 := timeSlot(req, "new-date-time"); err2 == nil && at2 != nil {
			at = at2
		} else {
			return msgBadTime, nil
		}
	}
	msg, ok := r.flows.CaptureNewTime(cs, *at)
	if !ok {
		return msgNoUpdatePending, nil
	}
	return msg, nil
}

// handleSmalltalk relays chit-chat to the external model; any failure there
// degrades to a fixed deflection rather than an error.
func (r *Router) handleSmalltalk(ctx context.Context, req *dialogflow.WebhookRequest) string {
	if r.chat == nil {
		return msgSmalltalkFallback
	}
	reply, err := r.chat.Complete(ctx, req.QueryResult.QueryText)
	if err != nil {
		r.log.Warn().Err(err).Msg("chat passthrough failed")
		return msgSmalltalkFallback
	}
	return reply
}

// handleFallback phrases the re-prompt according to the question currently
// pending, so a misrecognized utterance still moves the dialogue forward.
func (r *Router) handleFallback(cs *convctx.Set) string {
	switch DeriveState(cs).Kind {
	case AwaitingConfirmation:
		return msgConfirmHint
	case AwaitingSelection:
		return msgAskSelection
	case AwaitingNewTime:
		return msgBadTime
	case AwaitingTime:
		return "When should I remind you?"
	case AwaitingTask:
		return msgAskTask
	default:
		return msgFallback
	}
}

// stringSlot extracts a text slot; numbers are rendered as integers when
// whole so "2" survives the engine's float encoding.
func stringSlot(req *dialogflow.WebhookRequest, name string) string {
	raw, ok := req.QueryResult.Parameters[name]
	if !ok || len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// timeSlot normalizes a date-time slot. A missing or empty slot is (nil,
// nil); a present-but-unparseable one is an error the caller turns into a
// re-prompt.
func timeSlot(req *dialogflow.WebhookRequest, names ...string) (*time.Time, error) {
	for _, name := range names {
		raw, ok := req.QueryResult.Parameters[name]
		if !ok || len(raw) == 0 {
			continue
		}
		switch strings.TrimSpace(string(raw)) {
		case `""`, "null", "[]", "{}":
			continue
		}
		t, err := timeparse.Normalize(raw)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, nil
}
