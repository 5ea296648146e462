package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hearth-home/hearth-core/internal/events"
	"github.com/hearth-home/hearth-core/internal/registry"
)

const (
	// DefaultRunQueueSize bounds the per-rule execution queue. Trigger
	// firings beyond it are dropped with a warning.
	DefaultRunQueueSize = 16

	// DefaultFactoryDelay is how long the engine waits after a factory
	// registration before re-resolving parked rules, so a burst of
	// factories coming up together resolves once.
	DefaultFactoryDelay = 500 * time.Millisecond
)

// ContextKeyChain is the run context key carrying the UIDs of the rules
// whose runs led to the current one. Handlers that start other rules
// consult it to break cycles.
const ContextKeyChain = "causalChain"

// Engine resolves rules against handler factories, tracks rule
// lifecycle status and executes triggered rules. Each initialized rule
// owns one executor goroutine; runs of the same rule are serialized,
// different rules run concurrently.
type Engine struct {
	logger Logger
	bus    events.Publisher
	store  registry.Store
	reg    *Registry

	queueSize    int
	factoryDelay time.Duration

	mu        sync.Mutex
	started   bool
	closed    bool
	factories map[string]HandlerFactory
	statuses  map[string]StatusInfo
	runtimes  map[string]*ruleRuntime
	disabled  map[string]bool
	refresh   *time.Timer
	wg        sync.WaitGroup
}

// ruleRuntime is the live side of one initialized rule: its resolved
// handlers and the executor feeding them.
type ruleRuntime struct {
	rule       *Rule
	triggers   []boundTrigger
	conditions []boundCondition
	actions    []boundAction

	queue    chan runRequest
	stop     chan struct{}
	done     chan struct{}
	stopping atomic.Bool
}

type boundTrigger struct {
	module  Module
	handler TriggerHandler
}

type boundCondition struct {
	module  Module
	handler ConditionHandler
}

type boundAction struct {
	module  Module
	handler ActionHandler
}

// runRequest is one queued execution of a rule. reply is non-nil for
// synchronous RunNow calls.
type runRequest struct {
	context            map[string]any
	considerConditions bool
	reply              chan error
}

// resolveError carries the status detail a failed module resolution
// should park the rule with.
type resolveError struct {
	detail StatusDetail
	msg    string
}

func (e *resolveError) Error() string { return e.msg }

// NewEngine creates an engine over the given rule registry. Events go
// to bus, the disabled set persists in store (nil disables
// persistence). The engine registers itself as a registry change
// listener; call Start once handler factories are in place.
func NewEngine(reg *Registry, bus events.Publisher, store registry.Store, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Engine{
		logger:       logger,
		bus:          bus,
		store:        store,
		reg:          reg,
		queueSize:    DefaultRunQueueSize,
		factoryDelay: DefaultFactoryDelay,
		factories:    make(map[string]HandlerFactory),
		statuses:     make(map[string]StatusInfo),
		runtimes:     make(map[string]*ruleRuntime),
		disabled:     make(map[string]bool),
	}
	e.loadDisabled()
	reg.AddChangeListener(e)
	return e
}

func (e *Engine) loadDisabled() {
	if e.store == nil {
		return
	}
	uids, err := e.store.Keys(DisabledNamespace)
	if err != nil {
		e.logger.Warn("loading disabled rule set failed", "error", err)
		return
	}
	for _, uid := range uids {
		e.disabled[uid] = true
	}
}

// Start initializes all known rules and begins dispatching. Rules whose
// handler factories are not yet registered park on
// HANDLER_MISSING_ERROR until a matching factory appears.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.started {
		return nil
	}
	e.started = true
	for _, r := range e.reg.All() {
		e.initLocked(r)
	}
	e.logger.Info("rule engine started", "rules", e.reg.Count(), "factories", len(e.factories))
	return nil
}

// Stop disposes all rules and waits for running executions to finish,
// bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.refresh != nil {
		e.refresh.Stop()
	}
	for _, rt := range e.runtimes {
		e.disposeLocked(rt)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("rule engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rules: engine stop: %w", ctx.Err())
	}
}

// AddHandlerFactory registers a factory for its module types. Parked
// rules needing those types re-initialize after a short delay.
func (e *Engine) AddHandlerFactory(f HandlerFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range f.Types() {
		if _, dup := e.factories[t]; dup {
			e.logger.Warn("module type already registered, replacing", "type", t)
		}
		e.factories[t] = f
	}
	e.scheduleRefreshLocked()
}

// RemoveHandlerFactory unregisters a factory. Rules using its types are
// disposed and park on HANDLER_MISSING_ERROR.
func (e *Engine) RemoveHandlerFactory(f HandlerFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range f.Types() {
		if e.factories[t] == f {
			delete(e.factories, t)
		}
	}
	e.scheduleRefreshLocked()
}

func (e *Engine) scheduleRefreshLocked() {
	if !e.started || e.closed {
		return
	}
	if e.refresh != nil {
		e.refresh.Stop()
	}
	e.refresh = time.AfterFunc(e.factoryDelay, e.refreshRules)
}

// refreshRules re-resolves rules after the factory set changed: parked
// rules whose types are now served initialize, initialized rules whose
// factory went away park again.
func (e *Engine) refreshRules() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.started {
		return
	}
	for _, r := range e.reg.All() {
		if e.disabled[r.UID] {
			continue
		}
		if rt, ok := e.runtimes[r.UID]; ok {
			if missing := e.missingTypeLocked(r); missing != "" {
				e.disposeLocked(rt)
				e.setStatusLocked(r.UID, StatusInfoOf(StatusUninitialized, DetailHandlerMissing,
					fmt.Sprintf("no handler for module type %s", missing)))
			}
			continue
		}
		info := e.statuses[r.UID]
		if info.Status == StatusUninitialized &&
			(info.Detail == DetailHandlerMissing || info.Detail == DetailHandlerInitializing) {
			e.initLocked(r)
		}
	}
}

func (e *Engine) missingTypeLocked(r *Rule) string {
	for _, m := range r.Modules() {
		if _, ok := e.factories[m.TypeUID]; !ok {
			return m.TypeUID
		}
	}
	return ""
}

// Added implements registry.ChangeListener.
func (e *Engine) Added(r *Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.initLocked(r)
}

// Updated implements registry.ChangeListener. The rule re-initializes
// with its new definition.
func (e *Engine) Updated(_, newRule *Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.initLocked(newRule)
}

// Removed implements registry.ChangeListener. The disabled mark is kept
// so a rule coming back from a provider reload stays disabled.
func (e *Engine) Removed(r *Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rt, ok := e.runtimes[r.UID]; ok {
		e.disposeLocked(rt)
	}
	delete(e.statuses, r.UID)
}

// SetEnabled enables or disables a rule. The mark persists across
// restarts. Disabling disposes the rule's handlers; a run already in
// flight finishes, queued and future triggers are ignored.
func (e *Engine) SetEnabled(uid string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	r, ok := e.reg.Get(uid)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, uid)
	}

	if enabled {
		if !e.disabled[uid] {
			return nil
		}
		delete(e.disabled, uid)
		if e.store != nil {
			if err := e.store.Delete(DisabledNamespace, uid); err != nil {
				e.logger.Warn("clearing disabled mark failed", "rule", uid, "error", err)
			}
		}
		e.initLocked(r)
		return nil
	}

	if e.disabled[uid] {
		return nil
	}
	e.disabled[uid] = true
	if e.store != nil {
		if err := e.store.Put(DisabledNamespace, uid, true); err != nil {
			e.logger.Warn("persisting disabled mark failed", "rule", uid, "error", err)
		}
	}
	e.initLocked(r)
	return nil
}

// IsEnabled reports whether the rule is enabled. Unknown rules count as
// enabled.
func (e *Engine) IsEnabled(uid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.disabled[uid]
}

// Status returns the lifecycle status of the rule.
func (e *Engine) Status(uid string) (StatusInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if info, ok := e.statuses[uid]; ok {
		return info, true
	}
	if _, ok := e.reg.Get(uid); ok {
		return StatusInfoOf(StatusUninitialized, DetailNone, ""), true
	}
	return StatusInfo{}, false
}

// RunNow executes the rule synchronously, queued behind any run already
// in flight. Conditions are evaluated only when considerConditions is
// set; runContext seeds the execution's context.
func (e *Engine) RunNow(uid string, considerConditions bool, runContext map[string]any) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	rt, ok := e.runtimes[uid]
	if !ok {
		_, exists := e.reg.Get(uid)
		e.mu.Unlock()
		if !exists {
			return fmt.Errorf("%w: %s", ErrRuleNotFound, uid)
		}
		return fmt.Errorf("%w: %s", ErrNotInitialized, uid)
	}
	e.mu.Unlock()

	var runCtx map[string]any
	if runContext != nil {
		runCtx = make(map[string]any, len(runContext))
		for k, v := range runContext {
			runCtx[k] = v
		}
	}
	reply := make(chan error, 1)
	req := runRequest{context: runCtx, considerConditions: considerConditions, reply: reply}
	select {
	case rt.queue <- req:
	case <-rt.done:
		return fmt.Errorf("%w: %s", ErrNotInitialized, uid)
	}
	select {
	case err := <-reply:
		return err
	case <-rt.done:
		return fmt.Errorf("%w: %s", ErrNotInitialized, uid)
	}
}

// initLocked (re-)initializes one rule: disposes any previous runtime,
// resolves handlers, starts the executor and attaches triggers.
func (e *Engine) initLocked(r *Rule) {
	uid := r.UID
	if old, ok := e.runtimes[uid]; ok {
		e.disposeLocked(old)
	}
	if e.disabled[uid] {
		e.setStatusLocked(uid, StatusInfoOf(StatusUninitialized, DetailDisabled, ""))
		return
	}
	if !e.started {
		e.setStatusLocked(uid, StatusInfoOf(StatusUninitialized, DetailNone, ""))
		return
	}

	e.setStatusLocked(uid, StatusInfoOf(StatusInitializing, DetailNone, ""))
	rt := &ruleRuntime{
		rule:  r,
		queue: make(chan runRequest, e.queueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if err := e.resolveLocked(rt); err != nil {
		e.releaseLocked(rt)
		detail := DetailHandlerInitializing
		var rerr *resolveError
		if errors.As(err, &rerr) {
			detail = rerr.detail
		}
		e.logger.Warn("rule initialization failed", "rule", uid, "error", err)
		e.setStatusLocked(uid, StatusInfoOf(StatusUninitialized, detail, err.Error()))
		return
	}

	e.runtimes[uid] = rt
	e.wg.Add(1)
	go e.runExecutor(rt)

	e.setStatusLocked(uid, StatusInfoOf(StatusIdle, DetailNone, ""))
	cb := &ruleCallback{e: e, rt: rt}
	for _, bt := range rt.triggers {
		if err := bt.handler.Attach(cb); err != nil {
			e.logger.Warn("trigger attach failed", "rule", uid, "module", bt.module.ID, "error", err)
			e.disposeLocked(rt)
			e.setStatusLocked(uid, StatusInfoOf(StatusUninitialized, DetailHandlerInitializing, err.Error()))
			return
		}
	}
	e.logger.Debug("rule initialized", "rule", uid, "name", rt.rule.Name)
}

// resolveLocked creates handlers for every module of the runtime's
// rule.
func (e *Engine) resolveLocked(rt *ruleRuntime) error {
	r := rt.rule
	for _, m := range r.Triggers {
		h, err := e.createLocked(r, m)
		if err != nil {
			return err
		}
		th, ok := h.(TriggerHandler)
		if !ok {
			e.releaseModuleLocked(r.UID, m)
			return &resolveError{DetailInvalidRule,
				fmt.Sprintf("module %s: %s is not a trigger type", m.ID, m.TypeUID)}
		}
		rt.triggers = append(rt.triggers, boundTrigger{m, th})
	}
	for _, m := range r.Conditions {
		h, err := e.createLocked(r, m)
		if err != nil {
			return err
		}
		ch, ok := h.(ConditionHandler)
		if !ok {
			e.releaseModuleLocked(r.UID, m)
			return &resolveError{DetailInvalidRule,
				fmt.Sprintf("module %s: %s is not a condition type", m.ID, m.TypeUID)}
		}
		rt.conditions = append(rt.conditions, boundCondition{m, ch})
	}
	for _, m := range r.Actions {
		h, err := e.createLocked(r, m)
		if err != nil {
			return err
		}
		ah, ok := h.(ActionHandler)
		if !ok {
			e.releaseModuleLocked(r.UID, m)
			return &resolveError{DetailInvalidRule,
				fmt.Sprintf("module %s: %s is not an action type", m.ID, m.TypeUID)}
		}
		rt.actions = append(rt.actions, boundAction{m, ah})
	}
	return nil
}

func (e *Engine) createLocked(r *Rule, m Module) (Handler, error) {
	f, ok := e.factories[m.TypeUID]
	if !ok {
		return nil, &resolveError{DetailHandlerMissing,
			fmt.Sprintf("no handler for module type %s", m.TypeUID)}
	}
	h, err := f.Create(r, m)
	if err != nil {
		detail := DetailHandlerInitializing
		if errors.Is(err, ErrBadConfig) {
			detail = DetailConfigurationError
		}
		return nil, &resolveError{detail, fmt.Sprintf("module %s: %v", m.ID, err)}
	}
	return h, nil
}

// disposeLocked tears one runtime down: no new runs are accepted, the
// triggers detach, the handlers release. A run in flight finishes on
// its own; Stop waits for it.
func (e *Engine) disposeLocked(rt *ruleRuntime) {
	rt.stopping.Store(true)
	for _, bt := range rt.triggers {
		bt.handler.Detach()
	}
	close(rt.stop)
	e.releaseLocked(rt)
	delete(e.runtimes, rt.rule.UID)
}

func (e *Engine) releaseLocked(rt *ruleRuntime) {
	for _, bt := range rt.triggers {
		e.releaseModuleLocked(rt.rule.UID, bt.module)
	}
	for _, bc := range rt.conditions {
		e.releaseModuleLocked(rt.rule.UID, bc.module)
	}
	for _, ba := range rt.actions {
		e.releaseModuleLocked(rt.rule.UID, ba.module)
	}
}

func (e *Engine) releaseModuleLocked(ruleUID string, m Module) {
	if f, ok := e.factories[m.TypeUID]; ok {
		f.Release(ruleUID, m.ID)
	}
}

func (e *Engine) setStatusLocked(uid string, info StatusInfo) {
	e.statuses[uid] = info
	e.publish(NewStatusEvent(uid, info))
}

// transition publishes a run status change unless the rule was disposed
// mid-run.
func (e *Engine) transition(rt *ruleRuntime, info StatusInfo) {
	if rt.stopping.Load() {
		return
	}
	e.mu.Lock()
	e.statuses[rt.rule.UID] = info
	e.mu.Unlock()
	e.publish(NewStatusEvent(rt.rule.UID, info))
}

// ruleCallback routes trigger firings into the rule's executor without
// touching the engine lock, so triggers may fire from any goroutine,
// including during Attach.
type ruleCallback struct {
	e  *Engine
	rt *ruleRuntime
}

func (c *ruleCallback) Triggered(triggerID string, outputs map[string]any) {
	runCtx := make(map[string]any, len(outputs)+1)
	runCtx["event"] = outputs
	for k, v := range outputs {
		runCtx[triggerID+"."+k] = v
	}
	c.e.enqueue(c.rt, runRequest{context: runCtx, considerConditions: true})
}

func (e *Engine) enqueue(rt *ruleRuntime, req runRequest) {
	if rt.stopping.Load() {
		return
	}
	select {
	case rt.queue <- req:
	default:
		e.logger.Warn("rule run queue full, trigger dropped", "rule", rt.rule.UID)
	}
}

func (e *Engine) runExecutor(rt *ruleRuntime) {
	defer e.wg.Done()
	defer close(rt.done)
	for {
		select {
		case <-rt.stop:
			return
		case req := <-rt.queue:
			if rt.stopping.Load() {
				if req.reply != nil {
					req.reply <- fmt.Errorf("%w: %s", ErrNotInitialized, rt.rule.UID)
				}
				continue
			}
			err := e.execute(rt, req)
			if req.reply != nil {
				req.reply <- err
			}
		}
	}
}

// execute runs one rule execution: conditions gate, actions run in
// order, each action's outputs joining the context under
// "<moduleID>.<key>". A failing action aborts the rest.
func (e *Engine) execute(rt *ruleRuntime, req runRequest) error {
	e.transition(rt, StatusInfoOf(StatusRunning, DetailNone, ""))
	defer e.transition(rt, StatusInfoOf(StatusIdle, DetailNone, ""))

	runCtx := req.context
	if runCtx == nil {
		runCtx = make(map[string]any)
	}
	// The chain slice is shared with parent runs; append on a copy.
	chain, _ := runCtx[ContextKeyChain].([]string)
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	runCtx[ContextKeyChain] = append(next, rt.rule.UID)

	if req.considerConditions {
		for _, bc := range rt.conditions {
			if !bc.handler.Evaluate(resolveInputs(bc.module, runCtx), runCtx) {
				e.logger.Debug("rule conditions not satisfied",
					"rule", rt.rule.UID, "condition", bc.module.ID)
				return nil
			}
		}
	}

	for _, ba := range rt.actions {
		outputs, err := ba.handler.Execute(resolveInputs(ba.module, runCtx), runCtx)
		if err != nil {
			e.logger.Error("rule action failed",
				"rule", rt.rule.UID, "action", ba.module.ID, "error", err)
			return fmt.Errorf("%w: action %s: %v", ErrRunAborted, ba.module.ID, err)
		}
		for k, v := range outputs {
			runCtx[ba.module.ID+"."+k] = v
		}
	}
	return nil
}

// resolveInputs maps a module's declared inputs to run context values.
// Inputs whose context key is absent are left out.
func resolveInputs(m Module, runCtx map[string]any) map[string]any {
	if len(m.Inputs) == 0 {
		return nil
	}
	out := make(map[string]any, len(m.Inputs))
	for name, ref := range m.Inputs {
		if v, ok := runCtx[ref]; ok {
			out[name] = v
		}
	}
	return out
}

func (e *Engine) publish(ev events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ev); err != nil {
		e.logger.Warn("event publish failed", "type", ev.Type(), "topic", ev.Topic(), "error", err)
	}
}
