// Package coordinator implements the crew's control plane: it decomposes a
// request into a task graph, spawns role workers, dispatches ready tasks,
// arbitrates reviews and rework, enforces timeouts and token budgets, and
// synthesizes the final answer.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/isrc101/crew/internal/agent"
	"github.com/isrc101/crew/internal/board"
	"github.com/isrc101/crew/internal/budget"
	"github.com/isrc101/crew/internal/bus"
	"github.com/isrc101/crew/internal/roles"
	"github.com/isrc101/crew/internal/worker"
	"github.com/isrc101/crew/pkg/models"
)

// scratchpadContextChars caps the shared-notes block appended to each
// task assignment.
const scratchpadContextChars = 2000

// Coordinator runs the crew lifecycle end to end. All of its mutable maps are
// touched only by the Run goroutine; workers reach it exclusively through the
// message bus, so the struct needs no lock of its own.
type Coordinator struct {
	board      *board.TaskBoard
	bus        *bus.MessageBus
	budget     *budget.SharedTokenBudget
	roles      *roles.Registry
	completer  agent.Completer
	factory    agent.Factory
	emitter    *EventEmitter
	logger     *DebugLogger
	crewCtx    *CrewContext
	scratchpad *Scratchpad
	opts       *coordinatorOptions

	// workers maps instance name to its running worker.
	workers map[string]*worker.AgentWorker
	// roleInstances maps role name to its instance names, spawn order.
	roleInstances map[string][]string
	// busy marks instances currently holding a task or review.
	busy map[string]bool
	// taskStart records when each in-flight task was last (re)started,
	// feeding the timeout sweep.
	taskStart map[string]time.Time
	// reviewAssignees maps an in-review task to the reviewer instance
	// holding it, so timeouts and verdicts free the right worker.
	reviewAssignees map[string]string
}

// New creates a Coordinator around a planner/synthesizer completer and a
// worker agent factory. The factory must share the budget passed via
// WithBudget (or accept the default); NewFromClient wires that for you.
func New(completer agent.Completer, factory agent.Factory, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.roles == nil {
		o.roles = roles.NewRegistry()
	}
	if o.budget == nil {
		o.budget = budget.New(o.tokenBudget, o.perAgentBudget, o.roles.Multipliers())
	}
	if o.logger == nil {
		if o.projectRoot != "" {
			o.logger = NewDebugLoggerForProject(o.projectRoot)
		} else {
			o.logger = NopLogger()
		}
	}
	if o.bus == nil {
		o.bus = bus.New()
	}
	return &Coordinator{
		board:           board.New(),
		bus:             o.bus,
		budget:          o.budget,
		roles:           o.roles,
		completer:       completer,
		factory:         factory,
		emitter:         NewEventEmitter(defaultEventBuffer),
		logger:          o.logger,
		crewCtx:         NewCrewContext(),
		scratchpad:      NewScratchpad(),
		opts:            o,
		workers:         make(map[string]*worker.AgentWorker),
		roleInstances:   make(map[string][]string),
		busy:            make(map[string]bool),
		taskStart:       make(map[string]time.Time),
		reviewAssignees: make(map[string]string),
	}
}

// NewFromClient builds a Coordinator whose workers and planner share one API
// client and one token budget derived from the options.
func NewFromClient(client *agent.Client, opts ...Option) *Coordinator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	reg := o.roles
	if reg == nil {
		reg = roles.NewRegistry()
	}
	shared := o.budget
	if shared == nil {
		shared = budget.New(o.tokenBudget, o.perAgentBudget, reg.Multipliers())
	}
	factory := &agent.RoleFactory{
		Client:      client,
		ProjectRoot: o.projectRoot,
		Budget:      shared,
	}
	opts = append(opts, WithRoles(reg), WithBudget(shared))
	return New(client, factory, opts...)
}

// Events exposes the coordinator's event stream for rendering. The channel is
// closed when Run returns.
func (c *Coordinator) Events() <-chan CrewEvent {
	return c.emitter.Events()
}

// Budget returns the shared token budget, for end-of-run reporting.
func (c *Coordinator) Budget() *budget.SharedTokenBudget {
	return c.budget
}

// Board returns the task board, for end-of-run reporting.
func (c *Coordinator) Board() *board.TaskBoard {
	return c.board
}

// Close releases the debug logger. Call after Run returns.
func (c *Coordinator) Close() error {
	return c.logger.Close()
}

// Run executes one request end to end: decompose, spawn workers, drive the
// event loop to quiescence, shut the workers down, and synthesize the final
// answer. The event channel is closed before Run returns.
func (c *Coordinator) Run(ctx context.Context, request string) (string, error) {
	defer c.emitter.Close()

	tasks, err := c.decompose(ctx, request)
	if err != nil {
		return "", fmt.Errorf("failed to decompose request: %w", err)
	}
	c.board.AddTasks(tasks)
	c.logger.Log("[plan] %d tasks created", len(tasks))
	c.emit(CrewEvent{
		Type:    EventPlanCreated,
		Message: fmt.Sprintf("%d tasks across roles: %s", len(tasks), strings.Join(planRoles(tasks), ", ")),
	})

	c.startWorkers()
	c.eventLoop(ctx)
	c.shutdownWorkers()

	return c.finalize(ctx, request), nil
}

func planRoles(tasks []*models.CrewTask) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		if !seen[t.AssignedRole] {
			seen[t.AssignedRole] = true
			out = append(out, t.AssignedRole)
		}
	}
	return out
}

// startWorkers spawns up to maxParallel instances per role, bounded by that
// role's task count, plus one reviewer when auto-review is on and the plan
// includes coder tasks but no reviewer of its own.
func (c *Coordinator) startWorkers() {
	counts := make(map[string]int)
	for _, t := range c.board.AllTasks() {
		counts[t.AssignedRole]++
	}

	names := make([]string, 0, len(counts))
	for role := range counts {
		names = append(names, role)
	}
	sort.Strings(names)

	for _, role := range names {
		spec, ok := c.roles.Get(role)
		if !ok {
			c.logger.Log("[spawn] no spec for role %q, skipping", role)
			continue
		}
		instances := min(counts[role], c.opts.maxParallel)
		for i := 0; i < instances; i++ {
			name := role
			if instances > 1 {
				name = fmt.Sprintf("%s-%d", role, i)
			}
			c.spawn(name, role, spec)
		}
	}

	if c.opts.autoReview && counts[models.DefaultRoleName] > 0 &&
		len(c.roleInstances[models.ReviewerRoleName]) == 0 {
		if spec, ok := c.roles.Get(models.ReviewerRoleName); ok {
			c.spawn(models.ReviewerRoleName, models.ReviewerRoleName, spec)
		}
	}
}

func (c *Coordinator) spawn(name, role string, spec models.RoleSpec) {
	w := worker.New(name, spec, c.bus, c.factory)
	c.workers[name] = w
	c.roleInstances[role] = append(c.roleInstances[role], name)
	w.Start()
	c.logger.Log("[spawn] worker %s (role %s)", name, role)
}

// eventLoop drives dispatch until every task reaches a terminal state, the
// global budget runs out, or the context is cancelled. A receive timeout is
// the cue to sweep for stuck tasks.
func (c *Coordinator) eventLoop(ctx context.Context) {
	for !c.board.AllResolved() {
		if ctx.Err() != nil {
			c.logger.Log("[loop] context cancelled, stopping")
			return
		}
		if c.budget.IsExhausted() {
			c.logger.Log("[loop] global token budget exhausted, stopping")
			c.emit(CrewEvent{
				Type:    EventBudgetWarning,
				Message: fmt.Sprintf("global token budget exhausted (%d used)", c.budget.Used()),
			})
			return
		}
		c.dispatchReady()
		msg := c.bus.CoordinatorRecv(c.opts.messageTimeout)
		if msg == nil {
			c.checkTimeouts()
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Coordinator) handleMessage(msg *models.CrewMessage) {
	switch msg.Type {
	case models.MsgTaskComplete:
		c.onTaskComplete(msg)
	case models.MsgTaskFailed:
		c.onTaskFailed(msg)
	case models.MsgReviewPassed:
		c.onReviewPassed(msg)
	case models.MsgReworkNeeded:
		c.onReworkNeeded(msg)
	case models.MsgStatusUpdate:
		c.onStatusUpdate(msg)
	case models.MsgScratchpadWrite:
		c.onScratchpadWrite(msg)
	case models.MsgTaskAssigned, models.MsgReviewRequest, models.MsgReworkAssigned, models.MsgShutdown:
		// Worker-bound types; a misrouted copy carries no work for us.
	default:
		c.logger.Log("[loop] unexpected message type %q from %s", msg.Type, msg.Sender)
	}
}

// onTaskComplete routes a finished task either into review or straight to
// DONE. Late completions for already-terminal tasks still free the sender.
func (c *Coordinator) onTaskComplete(msg *models.CrewMessage) {
	c.freeInstance(msg.Sender)
	c.reclaimAgent(msg)

	if c.board.GetState(msg.TaskID).Terminal() {
		c.logger.Log("[late] TASK_COMPLETE for terminal task %s ignored", msg.TaskID)
		return
	}
	task := c.board.GetTask(msg.TaskID)
	if task == nil {
		c.logger.Log("[loop] TASK_COMPLETE for unknown task %s", msg.TaskID)
		return
	}

	result := &models.TaskResult{
		TaskID:         task.ID,
		RoleName:       task.AssignedRole,
		Status:         models.ResultDone,
		Output:         msg.Content,
		TokensUsed:     msg.MetaInt64("tokens"),
		ElapsedSeconds: msg.MetaFloat("elapsed"),
	}

	if c.shouldReview(task) {
		c.sendToReview(task, result)
		return
	}
	c.finalizeDone(task, result)
}

// shouldReview gates the review cycle: enabled, the task is coder work, and
// a reviewer instance exists.
func (c *Coordinator) shouldReview(task *models.CrewTask) bool {
	return c.opts.autoReview &&
		task.AssignedRole == models.DefaultRoleName &&
		len(c.roleInstances[models.ReviewerRoleName]) > 0
}

// sendToReview stashes the candidate output, restarts the task clock, and
// routes a review request to an idle reviewer, or to the first reviewer's
// mailbox when all are busy.
func (c *Coordinator) sendToReview(task *models.CrewTask, result *models.TaskResult) {
	c.board.MarkInReview(task.ID)
	c.board.StashResult(task.ID, result)
	c.taskStart[task.ID] = time.Now()

	reviewer := c.idleOrAnyInstance(models.ReviewerRoleName)
	c.busy[reviewer] = true
	c.reviewAssignees[task.ID] = reviewer

	m := models.NewMessage(models.MsgReviewRequest, models.CoordinatorName, reviewer)
	m.TaskID = task.ID
	m.Content = result.Output
	m.Metadata = map[string]any{"task_description": task.Description}
	c.bus.SendToWorker(m)

	c.emit(CrewEvent{Type: EventReviewCreated, TaskID: task.ID, Role: task.AssignedRole, Worker: reviewer})
}

func (c *Coordinator) finalizeDone(task *models.CrewTask, result *models.TaskResult) {
	c.board.MarkDone(task.ID, result)
	c.crewCtx.AddResult(task.ID, result.Output)
	delete(c.taskStart, task.ID)
	c.emit(CrewEvent{
		Type:       EventTaskDone,
		TaskID:     task.ID,
		Role:       task.AssignedRole,
		TokensUsed: result.TokensUsed,
		Elapsed:    result.ElapsedSeconds,
	})
}

func (c *Coordinator) onTaskFailed(msg *models.CrewMessage) {
	c.freeInstance(msg.Sender)
	c.reclaimAgent(msg)

	if c.board.GetState(msg.TaskID).Terminal() {
		c.logger.Log("[late] TASK_FAILED for terminal task %s ignored", msg.TaskID)
		return
	}
	task := c.board.GetTask(msg.TaskID)
	if task == nil {
		c.logger.Log("[loop] TASK_FAILED for unknown task %s", msg.TaskID)
		return
	}

	result := &models.TaskResult{
		TaskID:         task.ID,
		RoleName:       task.AssignedRole,
		Status:         models.ResultFailed,
		Error:          msg.Content,
		TokensUsed:     msg.MetaInt64("tokens"),
		ElapsedSeconds: msg.MetaFloat("elapsed"),
	}
	c.board.MarkFailed(task.ID, result)
	delete(c.taskStart, task.ID)
	c.board.SkipDownstream(task.ID)
	c.emit(CrewEvent{Type: EventTaskFailed, TaskID: task.ID, Role: task.AssignedRole, Message: msg.Content})
}

// onReviewPassed finalizes the stashed candidate output as the task result.
// Fail-open reviews arrive here too, flagged with review_error.
func (c *Coordinator) onReviewPassed(msg *models.CrewMessage) {
	c.freeInstance(msg.Sender)
	c.reclaimAgent(msg)
	delete(c.reviewAssignees, msg.TaskID)

	if c.board.GetState(msg.TaskID) != models.TaskStateInReview {
		c.logger.Log("[late] REVIEW_PASSED for task %s not in review, ignored", msg.TaskID)
		return
	}
	task := c.board.GetTask(msg.TaskID)
	result := c.board.GetResult(msg.TaskID)
	if task == nil || result == nil {
		c.logger.Log("[loop] REVIEW_PASSED for task %s without stashed result", msg.TaskID)
		return
	}

	note := ""
	if msg.MetaBool("review_error") {
		note = msg.Content
	}
	c.emit(CrewEvent{Type: EventReviewPassed, TaskID: task.ID, Role: task.AssignedRole, Worker: msg.Sender, Message: note})
	c.finalizeDone(task, result)
}

// onReworkNeeded either sends the task back to its author with the review
// feedback, or accepts the last candidate output once the rework limit is
// exceeded.
func (c *Coordinator) onReworkNeeded(msg *models.CrewMessage) {
	c.freeInstance(msg.Sender)
	c.reclaimAgent(msg)
	delete(c.reviewAssignees, msg.TaskID)

	if c.board.GetState(msg.TaskID) != models.TaskStateInReview {
		c.logger.Log("[late] REWORK_NEEDED for task %s not in review, ignored", msg.TaskID)
		return
	}
	task := c.board.GetTask(msg.TaskID)
	if task == nil {
		return
	}
	prev := c.board.GetResult(msg.TaskID)

	count := c.board.RequestRework(task.ID)
	if count > c.opts.maxRework {
		c.emit(CrewEvent{
			Type:        EventReworkLimit,
			TaskID:      task.ID,
			Role:        task.AssignedRole,
			ReworkCount: count,
			Message:     fmt.Sprintf("rework limit (%d) exceeded, accepting last output", c.opts.maxRework),
		})
		if prev == nil {
			prev = &models.TaskResult{TaskID: task.ID, RoleName: task.AssignedRole, Status: models.ResultDone}
		}
		c.finalizeDone(task, prev)
		return
	}

	c.emit(CrewEvent{Type: EventReworkRequested, TaskID: task.ID, Role: task.AssignedRole, ReworkCount: count, Message: msg.Content})

	inst := c.idleInstance(task.AssignedRole)
	if inst == "" {
		// Stays in REWORK; the next dispatch pass reassigns it, albeit
		// without the inline feedback metadata.
		delete(c.taskStart, task.ID)
		c.logger.Log("[rework] no idle %s instance for task %s, deferring", task.AssignedRole, task.ID)
		return
	}
	c.busy[inst] = true
	c.board.Assign(task.ID, inst)
	c.taskStart[task.ID] = time.Now()

	m := models.NewMessage(models.MsgReworkAssigned, models.CoordinatorName, inst)
	m.TaskID = task.ID
	m.Content = c.buildAssignment(task)
	m.Metadata = map[string]any{"rework_feedback": msg.Content}
	if prev != nil {
		m.Metadata["previous_output"] = prev.Output
	}
	c.bus.SendToWorker(m)
}

func (c *Coordinator) onStatusUpdate(msg *models.CrewMessage) {
	c.emit(CrewEvent{
		Type:       EventStatusTick,
		TaskID:     msg.TaskID,
		Worker:     msg.Sender,
		TokensUsed: msg.MetaInt64("tokens"),
		Elapsed:    msg.MetaFloat("elapsed"),
	})
	c.checkAgentWarnings(msg)
}

func (c *Coordinator) onScratchpadWrite(msg *models.CrewMessage) {
	key := msg.MetaString("key")
	if key == "" {
		c.logger.Log("[scratchpad] write from %s without key, ignored", msg.Sender)
		return
	}
	c.scratchpad.Write(key, msg.Content, msg.Sender, msg.TaskID, msg.MetaStrings("tags"))
}

// dispatchReady assigns every ready task for which an idle instance of its
// role exists, in board priority order. Tasks without an idle instance wait
// for the next pass.
func (c *Coordinator) dispatchReady() {
	for _, task := range c.board.GetAssignable() {
		inst := c.idleInstance(task.AssignedRole)
		if inst == "" {
			continue
		}
		c.busy[inst] = true
		c.board.Assign(task.ID, inst)
		c.taskStart[task.ID] = time.Now()

		m := models.NewMessage(models.MsgTaskAssigned, models.CoordinatorName, inst)
		m.TaskID = task.ID
		m.Content = c.buildAssignment(task)
		c.bus.SendToWorker(m)

		c.emit(CrewEvent{Type: EventTaskStarted, TaskID: task.ID, Role: task.AssignedRole, Worker: inst})
	}
}

// buildAssignment composes the worker instruction: the task description, the
// results of its context sources, and any relevant shared notes.
func (c *Coordinator) buildAssignment(task *models.CrewTask) string {
	content := task.Description
	if block := c.board.GetContextForTask(task); block != "" {
		content += "\n\n## Context from completed dependency tasks:\n\n" + block
	}
	if notes := c.scratchpad.RelevantForTask(task, scratchpadContextChars); notes != "" {
		content += "\n\n" + notes
	}
	return content
}

// checkTimeouts fails every in-flight task older than the task timeout,
// freeing its workers and skipping its dependents.
func (c *Coordinator) checkTimeouts() {
	if c.opts.taskTimeout <= 0 {
		return
	}
	now := time.Now()
	for taskID, started := range c.taskStart {
		age := now.Sub(started)
		if age < c.opts.taskTimeout {
			continue
		}
		state := c.board.GetState(taskID)
		switch state {
		case models.TaskStateAssigned, models.TaskStateRunning, models.TaskStateInReview:
		default:
			delete(c.taskStart, taskID)
			continue
		}
		task := c.board.GetTask(taskID)
		if task == nil {
			delete(c.taskStart, taskID)
			continue
		}

		// In review, the board assignment names the original executor, which
		// was already freed at TASK_COMPLETE and may be busy elsewhere. Only
		// the review holder is still tied up.
		if state != models.TaskStateInReview {
			if w := c.board.GetAssignment(taskID); w != "" {
				c.freeInstance(w)
			}
		}
		if reviewer, ok := c.reviewAssignees[taskID]; ok {
			c.freeInstance(reviewer)
			delete(c.reviewAssignees, taskID)
		}

		result := &models.TaskResult{
			TaskID:   taskID,
			RoleName: task.AssignedRole,
			Status:   models.ResultFailed,
			Error:    fmt.Sprintf("timed out after %.0fs", age.Seconds()),
		}
		c.board.MarkFailed(taskID, result)
		c.board.SkipDownstream(taskID)
		delete(c.taskStart, taskID)
		c.logger.Log("[timeout] task %s failed after %.0fs", taskID, age.Seconds())
		c.emit(CrewEvent{Type: EventTaskFailed, TaskID: taskID, Role: task.AssignedRole, Message: result.Error})
	}
}

// reclaimAgent returns a finished agent's unused allocation to the shared
// pool. Warnings are checked first since the final consume may have crossed
// a threshold.
func (c *Coordinator) reclaimAgent(msg *models.CrewMessage) {
	c.checkAgentWarnings(msg)
	agentID := msg.MetaString("agent_id")
	if agentID == "" {
		return
	}
	if reclaimed := c.budget.ReallocateFrom(agentID); reclaimed > 0 {
		c.logger.Log("[budget] reclaimed %d tokens from %s", reclaimed, agentID)
		c.emit(CrewEvent{
			Type:       EventBudgetReallocated,
			Worker:     msg.Sender,
			TokensUsed: reclaimed,
			Message:    fmt.Sprintf("%d unused tokens returned to the shared pool", reclaimed),
		})
	}
}

func (c *Coordinator) checkAgentWarnings(msg *models.CrewMessage) {
	agentID := msg.MetaString("agent_id")
	if agentID == "" {
		return
	}
	if th := c.budget.CheckWarnings(agentID, c.opts.warningThresholds); th != nil {
		c.emit(CrewEvent{
			Type:    EventBudgetWarning,
			Worker:  msg.Sender,
			Message: fmt.Sprintf("agent %s passed %d%% of its token limit", agentID, *th),
		})
	}
}

func (c *Coordinator) freeInstance(name string) {
	if name == models.CoordinatorName {
		return
	}
	delete(c.busy, name)
}

// idleInstance returns an idle instance of the role, or "".
func (c *Coordinator) idleInstance(role string) string {
	for _, name := range c.roleInstances[role] {
		if !c.busy[name] {
			return name
		}
	}
	return ""
}

// idleOrAnyInstance prefers an idle instance but falls back to the first one,
// letting its mailbox queue the work. Used only for reviews, which must not
// stall behind a busy pool.
func (c *Coordinator) idleOrAnyInstance(role string) string {
	if name := c.idleInstance(role); name != "" {
		return name
	}
	return c.roleInstances[role][0]
}

// shutdownWorkers broadcasts SHUTDOWN, signals every worker, and waits out
// the join grace per worker. Stragglers are logged, not waited on further.
func (c *Coordinator) shutdownWorkers() {
	c.bus.BroadcastToWorkers(models.NewMessage(models.MsgShutdown, models.CoordinatorName, ""))
	for _, w := range c.workers {
		w.Stop()
	}
	for name, w := range c.workers {
		if !w.Join(c.opts.joinGrace) {
			c.logger.Log("[shutdown] worker %s did not exit within %s", name, c.opts.joinGrace)
		}
	}
	c.logger.Log("[shutdown] %d workers stopped, %d bus sends dropped", len(c.workers), c.bus.DroppedCount())
}

// finalize synthesizes the final answer from all stored results and appends a
// note for any tasks skipped because an upstream task failed.
func (c *Coordinator) finalize(ctx context.Context, request string) string {
	var results []*models.TaskResult
	for _, t := range c.board.AllTasks() {
		if r := c.board.GetResult(t.ID); r != nil {
			results = append(results, r)
		}
	}
	summary := c.synthesize(ctx, request, results)

	if skipped := c.board.SkippedTasks(); len(skipped) > 0 {
		var lines []string
		for _, t := range skipped {
			lines = append(lines, fmt.Sprintf("- %s: %s", t.ID, t.Description))
		}
		summary += "\n\n## Skipped tasks (upstream failure):\n" + strings.Join(lines, "\n")
	}
	return summary
}

func (c *Coordinator) emit(event CrewEvent) {
	c.emitter.Emit(event)
}
