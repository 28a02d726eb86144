package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeladoria/zela/internal/event"
	"github.com/zeladoria/zela/internal/extract"
	"github.com/zeladoria/zela/internal/geocode"
	"github.com/zeladoria/zela/internal/outbound"
	"github.com/zeladoria/zela/internal/session"
	"github.com/zeladoria/zela/internal/ticket"
)

const (
	// turnTimeout bounds one whole turn, AI call and downstream included.
	turnTimeout = 2 * time.Minute
	// defaultAITimeout bounds a single extraction call; the fallback
	// classifier answers when it fires.
	defaultAITimeout = 30 * time.Second
	// materializeTimeout bounds the ticket-creation call.
	materializeTimeout = 30 * time.Second
	// geocodeTimeout bounds the opportunistic enrichment call.
	geocodeTimeout = 5 * time.Second
)

// SlotExtractor is the extraction surface the engine depends on.
type SlotExtractor interface {
	AnalyzeText(ctx context.Context, text, contextSummary string) extract.Result
	AnalyzeImage(ctx context.Context, media []byte, mime, caption, contextSummary string) extract.Result
	AnalyzeAudio(ctx context.Context, media []byte, mime, contextSummary string) extract.Result
	AnalyzeVideo(ctx context.Context, media []byte, mime, caption, contextSummary string) extract.Result
}

// Engine is the conversation state machine. Turns for one sender run
// strictly in receipt order on that sender's mailbox; different senders
// never contend with each other.
type Engine struct {
	logger     *slog.Logger
	store      session.Store
	extractor  SlotExtractor
	tickets    ticket.Materializer
	dispatcher outbound.Dispatcher
	geocoder   geocode.Geocoder
	hub        *event.Hub
	aiTimeout  time.Duration
	now        func() time.Time

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	closed    bool
	wg        sync.WaitGroup
}

// NewEngine wires the state machine to its collaborators.
func NewEngine(log *slog.Logger, store session.Store, extractor SlotExtractor, tickets ticket.Materializer, dispatcher outbound.Dispatcher) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		logger:     log.With(slog.String("service", "intake_engine")),
		store:      store,
		extractor:  extractor,
		tickets:    tickets,
		dispatcher: dispatcher,
		aiTimeout:  defaultAITimeout,
		now:        time.Now,
		mailboxes:  make(map[string]*mailbox),
	}
}

// SetGeocoder enables opportunistic reverse-geocode enrichment.
func (e *Engine) SetGeocoder(g geocode.Geocoder) { e.geocoder = g }

// SetHub enables turn-event publication for the dashboard feed.
func (e *Engine) SetHub(h *event.Hub) { e.hub = h }

// SetAITimeout overrides the per-extraction deadline.
func (e *Engine) SetAITimeout(d time.Duration) {
	if d > 0 {
		e.aiTimeout = d
	}
}

// SetClock overrides the engine clock, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// HandleInbound accepts one normalized event, fire and forget. Processing
// happens on the sender's mailbox; replies go out through the dispatcher.
func (e *Engine) HandleInbound(ev InboundEvent) {
	if strings.TrimSpace(ev.SenderID) == "" {
		e.logger.Warn("dropping event without sender")
		return
	}
	// Flag cancellation at accept time so an in-flight turn for this sender
	// discards its AI result instead of committing over the cancel.
	flagCancel := ev.Kind == KindText && isCancelCommand(ev.Text)
	if !e.dispatch(ev.SenderID, flagCancel, func(mb *mailbox) { e.processTurn(ev, mb) }) {
		e.logger.Warn("engine closed, dropping event", slog.String("sender", ev.SenderID))
	}
}

// WarnIdle implements session.SweepHandler.
func (e *Engine) WarnIdle(senderID string) {
	e.dispatch(senderID, false, func(*mailbox) { e.processIdleWarning(senderID) })
}

// Expire implements session.SweepHandler.
func (e *Engine) Expire(senderID string) {
	e.dispatch(senderID, false, func(*mailbox) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.store.Delete(ctx, senderID); err != nil {
			e.logger.Error("expire session failed", slog.String("sender", senderID), slog.Any("error", err))
		}
	})
}

// Close stops accepting events and waits for queued turns to drain.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}

// dispatch enqueues a job on the sender's mailbox, creating it on first
// use. Flagging and enqueueing happen under the engine lock so they cannot
// race the idle pruning below.
func (e *Engine) dispatch(senderID string, flagCancel bool, job func(*mailbox)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	mb, ok := e.mailboxes[senderID]
	if !ok {
		mb = &mailbox{}
		mb.onIdle = func() { e.releaseMailbox(senderID, mb) }
		e.mailboxes[senderID] = mb
	}
	if flagCancel {
		mb.cancelPending.Store(true)
	}
	mb.enqueue(func() { job(mb) }, &e.wg)
	return true
}

// releaseMailbox prunes a drained mailbox. The idle re-check under the
// engine lock keeps a mailbox alive when a job slipped in between the
// drain goroutine stopping and this call.
func (e *Engine) releaseMailbox(senderID string, mb *mailbox) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mailboxes[senderID] == mb && mb.idle() {
		delete(e.mailboxes, senderID)
	}
}

// turnResult is what a stage handler hands back to the turn loop.
type turnResult struct {
	reply     string
	situation situation
	evict     bool
	protocol  string
}

func (e *Engine) processTurn(ev InboundEvent, mb *mailbox) {
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()
	now := e.now()

	sess, err := e.store.Get(ctx, ev.SenderID)
	isNew := false
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			e.logger.Error("load session failed", slog.String("sender", ev.SenderID), slog.Any("error", err))
			return
		}
		sess = session.New(ev.SenderID, uuid.NewString(), now)
		isNew = true
	}
	// A session warned for idleness restarts from Idle on its next turn.
	if !isNew && sess.WarnedIdle {
		sess.Reset(now)
	}
	stageBefore := sess.Stage

	isCancel := ev.Kind == KindText && isCancelCommand(ev.Text)
	if isCancel {
		mb.cancelPending.Store(false)
		if err := e.store.Delete(ctx, ev.SenderID); err != nil {
			e.logger.Error("evict on cancel failed", slog.String("sender", ev.SenderID), slog.Any("error", err))
		}
		reply := pickVariant(situationConfirmCancel, variantSeed(ev.SenderID, sess.TurnCount))
		e.send(ctx, ev.SenderID, reply)
		e.publish(ev, stageBefore, session.StageClosed, reply, "")
		return
	}

	result := e.routeTurn(ctx, &sess, ev, mb)

	// A cancel command arrived while this turn was in flight (e.g. during
	// the AI call). Its own turn is queued right behind us; drop this one
	// so the session it evicts is not resurrected.
	if mb.cancelPending.Load() {
		e.logger.Info("turn discarded after cancel", slog.String("sender", ev.SenderID))
		return
	}

	alternatives := replyVariants[result.situation]
	if result.situation == situationCreated {
		alternatives = createdAlternatives(result.protocol)
	}
	reply := Dedupe(result.reply, sess.RecentReplies, alternatives)
	if reply != "" && !sess.Greeted {
		reply = pickVariant(situationGreeting, variantSeed(ev.SenderID, 0)) + " " + reply
		sess.Greeted = true
	}

	sess.TurnCount++
	sess.AppendTurn(session.RoleUser, ev.Content())
	sess.LastActivityAt = now

	// Commit before dispatch: a delivery failure must not re-run the
	// transition or re-create a ticket.
	if result.evict {
		if err := e.store.Delete(ctx, ev.SenderID); err != nil {
			e.logger.Error("evict session failed", slog.String("sender", ev.SenderID), slog.Any("error", err))
		}
	} else {
		sess.AppendTurn(session.RoleAssistant, reply)
		sess.RememberReply(reply)
		if err := e.store.Put(ctx, sess); err != nil {
			e.logger.Error("persist session failed", slog.String("sender", ev.SenderID), slog.Any("error", err))
			return
		}
	}

	if reply != "" {
		e.send(ctx, ev.SenderID, reply)
	}
	stageAfter := sess.Stage
	if result.evict {
		stageAfter = session.StageClosed
	}
	e.publish(ev, stageBefore, stageAfter, reply, result.protocol)
}

// routeTurn picks the stage handler. Collection is the default path; the
// confirmation and consultation stages intercept text first.
func (e *Engine) routeTurn(ctx context.Context, sess *session.Session, ev InboundEvent, mb *mailbox) turnResult {
	if ev.Kind == KindText {
		switch {
		case sess.Stage == session.StageAwaitingConfirmation:
			return e.handleConfirmation(ctx, sess, ev, mb)
		case sess.Stage == session.StageConsultingTicket:
			return e.handleConsultation(ctx, sess, ev)
		case sess.Stage == session.StageIdle && isStatusQuery(ev.Text):
			return e.handleConsultation(ctx, sess, ev)
		}
	}
	return e.handleCollection(ctx, sess, ev, mb)
}

func (e *Engine) handleCollection(ctx context.Context, sess *session.Session, ev InboundEvent, mb *mailbox) turnResult {
	seed := variantSeed(ev.SenderID, sess.TurnCount)
	suggested := ""

	switch ev.Kind {
	case KindText:
		if sess.Stage == session.StageIdle && slotsEmpty(sess.Slots) && !hasDemandSignal(ev.Text) {
			return turnResult{reply: pickVariant(situationMenu, seed), situation: situationMenu}
		}
		result := e.analyzeText(ctx, ev.Text, sess.ContextSummary())
		mergeSlots(&sess.Slots, result)
		suggested = result.SuggestedReply

	case KindAudio:
		if len(ev.Media) == 0 {
			return turnResult{reply: pickVariant(situationUnsupported, seed), situation: situationUnsupported}
		}
		result := e.analyzeAudio(ctx, ev.Media, ev.MimeType, sess.ContextSummary())
		mergeSlots(&sess.Slots, result)
		suggested = result.SuggestedReply

	case KindImage, KindVideo:
		if len(ev.Media) == 0 {
			return turnResult{reply: pickVariant(situationPhotoFailed, seed), situation: situationPhotoFailed}
		}
		ref, err := e.tickets.StageAttachment(ctx, ev.Media, ev.MimeType)
		if err != nil {
			e.logger.Warn("stage attachment failed", slog.String("sender", ev.SenderID), slog.Any("error", err))
			return turnResult{reply: pickVariant(situationPhotoFailed, seed), situation: situationPhotoFailed}
		}
		sess.Slots.Photos = append(sess.Slots.Photos, ref)
		result := e.analyzeVisual(ctx, ev, sess.ContextSummary())
		mergeSlots(&sess.Slots, result)
		suggested = result.SuggestedReply

	case KindLocation:
		sess.Slots.Coordinates = &session.Coordinates{Latitude: ev.Latitude, Longitude: ev.Longitude}
		if addr := strings.TrimSpace(ev.Text); addr != "" && sess.Slots.AddressText == "" {
			sess.Slots.AddressText = addr
		}
		e.enrichLocation(ctx, sess)

	default: // stickers, documents, anything unclassified
		return turnResult{reply: pickVariant(situationUnsupported, seed), situation: situationUnsupported}
	}

	// Eager completion: re-check after every mutation, not just at stage
	// checkpoints. Any single message may fill several slots at once.
	if sess.Slots.Complete() {
		return e.materialize(ctx, sess, mb)
	}

	sess.Stage = nextStage(sess.Slots)
	ask := missingSlot(sess.Slots)
	reply := suggested
	if reply == "" {
		reply = pickVariant(ask, seed)
	}
	return turnResult{reply: reply, situation: ask}
}

func (e *Engine) handleConfirmation(ctx context.Context, sess *session.Session, ev InboundEvent, mb *mailbox) turnResult {
	seed := variantSeed(ev.SenderID, sess.TurnCount)
	switch {
	case isAffirmative(ev.Text):
		if sess.Slots.Complete() {
			return e.materialize(ctx, sess, mb)
		}
		sess.Stage = nextStage(sess.Slots)
		ask := missingSlot(sess.Slots)
		return turnResult{reply: pickVariant(ask, seed), situation: ask}
	case isNegative(ev.Text):
		sess.Reset(e.now())
		return turnResult{reply: pickVariant(situationRestart, seed), situation: situationRestart}
	default:
		return turnResult{reply: pickVariant(situationReconfirm, seed), situation: situationReconfirm}
	}
}

func (e *Engine) handleConsultation(ctx context.Context, sess *session.Session, ev InboundEvent) turnResult {
	seed := variantSeed(ev.SenderID, sess.TurnCount)
	protocol := extractProtocol(ev.Text)
	if protocol == "" {
		sess.Stage = session.StageConsultingTicket
		return turnResult{reply: pickVariant(situationAskProtocol, seed), situation: situationAskProtocol}
	}
	lookupCtx, cancel := context.WithTimeout(ctx, materializeTimeout)
	defer cancel()
	status, err := e.tickets.GetByProtocol(lookupCtx, protocol)
	sess.Stage = session.StageIdle
	if err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			return turnResult{reply: protocolNotFoundReply}
		}
		e.logger.Warn("protocol lookup failed", slog.String("protocol", protocol), slog.Any("error", err))
		return turnResult{reply: consultFailedReply}
	}
	return turnResult{reply: fmt.Sprintf(statusReplyFormat, status.Protocol, status.Status)}
}

// materialize creates the ticket exactly once per session. Success evicts
// the session; failure keeps it in AwaitingConfirmation with every slot
// intact so the citizen can ask for a retry.
func (e *Engine) materialize(ctx context.Context, sess *session.Session, mb *mailbox) turnResult {
	// A cancel accepted while this turn was in flight wins over completion.
	// The turn is about to be discarded; creating the ticket now would
	// orphan it, with a protocol nobody ever receives.
	if mb.cancelPending.Load() {
		return turnResult{}
	}
	seed := variantSeed(sess.SenderID, sess.TurnCount)
	createCtx, cancel := context.WithTimeout(ctx, materializeTimeout)
	defer cancel()
	ref, err := e.tickets.Create(createCtx, ticket.CreateInput{
		Description:        sess.Slots.Description,
		Category:           sess.Slots.Category,
		Address:            sess.Slots.AddressText,
		Neighborhood:       sess.Slots.Neighborhood,
		Urgency:            sess.Slots.Urgency,
		Coordinates:        sess.Slots.Coordinates,
		Attachments:        sess.Slots.Photos,
		RequesterChannelID: sess.SenderID,
		IdempotencyKey:     sess.TicketKey,
	})
	if err != nil {
		e.logger.Error("materialize ticket failed", slog.String("sender", sess.SenderID), slog.Any("error", err))
		sess.Stage = session.StageAwaitingConfirmation
		return turnResult{reply: pickVariant(situationCreateFailed, seed), situation: situationCreateFailed}
	}
	e.logger.Info("ticket created",
		slog.String("sender", sess.SenderID),
		slog.String("protocol", ref.Protocol),
	)
	sess.Stage = session.StageClosed
	reply := fmt.Sprintf(pickVariant(situationCreated, seed), ref.Protocol)
	return turnResult{reply: reply, situation: situationCreated, evict: true, protocol: ref.Protocol}
}

func (e *Engine) processIdleWarning(senderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sess, err := e.store.Get(ctx, senderID)
	if err != nil {
		return
	}
	if sess.WarnedIdle {
		return
	}
	sess.WarnedIdle = true
	reply := pickVariant(situationIdleWarning, variantSeed(senderID, sess.TurnCount))
	// LastActivityAt stays untouched so the hard TTL still counts from the
	// citizen's real activity.
	if err := e.store.Put(ctx, sess); err != nil {
		e.logger.Error("persist idle warning failed", slog.String("sender", senderID), slog.Any("error", err))
		return
	}
	e.send(ctx, senderID, reply)
}

func (e *Engine) analyzeText(ctx context.Context, text, summary string) extract.Result {
	aiCtx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()
	return e.extractor.AnalyzeText(aiCtx, text, summary)
}

func (e *Engine) analyzeAudio(ctx context.Context, media []byte, mime, summary string) extract.Result {
	aiCtx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()
	return e.extractor.AnalyzeAudio(aiCtx, media, mime, summary)
}

func (e *Engine) analyzeVisual(ctx context.Context, ev InboundEvent, summary string) extract.Result {
	aiCtx, cancel := context.WithTimeout(ctx, e.aiTimeout)
	defer cancel()
	if ev.Kind == KindVideo {
		return e.extractor.AnalyzeVideo(aiCtx, ev.Media, ev.MimeType, ev.Caption, summary)
	}
	return e.extractor.AnalyzeImage(aiCtx, ev.Media, ev.MimeType, ev.Caption, summary)
}

func (e *Engine) enrichLocation(ctx context.Context, sess *session.Session) {
	if e.geocoder == nil || sess.Slots.Coordinates == nil {
		return
	}
	if sess.Slots.AddressText != "" && sess.Slots.Neighborhood != "" {
		return
	}
	geoCtx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()
	place, err := e.geocoder.Reverse(geoCtx, sess.Slots.Coordinates.Latitude, sess.Slots.Coordinates.Longitude)
	if err != nil {
		e.logger.Debug("reverse geocode failed", slog.Any("error", err))
		return
	}
	if sess.Slots.AddressText == "" {
		sess.Slots.AddressText = place.Address
	}
	if sess.Slots.Neighborhood == "" {
		sess.Slots.Neighborhood = place.Neighborhood
	}
}

func (e *Engine) send(ctx context.Context, senderID, text string) {
	if text == "" {
		return
	}
	if err := e.dispatcher.SendText(ctx, senderID, text); err != nil {
		e.logger.Error("send reply failed", slog.String("sender", senderID), slog.Any("error", err))
	}
}

func (e *Engine) publish(ev InboundEvent, before, after session.Stage, reply, protocol string) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(event.TurnEvent{
		SenderID:    ev.SenderID,
		Kind:        string(ev.Kind),
		StageBefore: string(before),
		StageAfter:  string(after),
		Reply:       reply,
		Protocol:    protocol,
	})
}

// mergeSlots copies non-empty extracted fields into the slots. A filled
// slot is never overwritten by an empty extraction.
func mergeSlots(slots *session.Slots, result extract.Result) {
	if slots.Description == "" && result.Description != "" {
		slots.Description = result.Description
	}
	if slots.Category == "" && result.Category != "" {
		slots.Category = result.Category
	}
	if slots.AddressText == "" && result.AddressText != "" {
		slots.AddressText = result.AddressText
	}
	if slots.Neighborhood == "" && result.Neighborhood != "" {
		slots.Neighborhood = result.Neighborhood
	}
	if slots.Urgency == "" && result.Urgency != "" {
		slots.Urgency = result.Urgency
	}
}

func slotsEmpty(slots session.Slots) bool {
	return slots.Description == "" && !slots.HasLocation() &&
		len(slots.Photos) == 0 && slots.Category == ""
}
