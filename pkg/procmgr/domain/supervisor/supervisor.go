// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package supervisor is the centerpiece of the process manager: a single
// event loop that consumes exit events, applies restart policy with
// backoff/burst accounting, cascades BindsTo shutdowns, and never polls.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/health"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/envfile"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/notifysocket"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// Supervisor owns the repository and executor; it is the sole consumer of
// the watcher's exit-event channel and, when socket activation is in use,
// the activation manager's event channel.
type Supervisor struct {
	repo       ports.Repository
	exec       ports.Executor
	watcher    ports.Watcher
	health     *health.Monitor
	activation <-chan ports.SocketActivationEvent

	trackersMu sync.Mutex
	trackers   map[process.ID]*process.RestartTracker
}

// New wires a Supervisor against its collaborators. health may be nil if no
// health monitoring is configured for this daemon instance.
func New(repo ports.Repository, exec ports.Executor, w ports.Watcher, h *health.Monitor) *Supervisor {
	return &Supervisor{
		repo:     repo,
		exec:     exec,
		watcher:  w,
		health:   h,
		trackers: make(map[process.ID]*process.RestartTracker),
	}
}

// WithSocketActivation attaches the socket activation manager's event
// channel; Run starts consuming it immediately. Not set, socket-activated
// entities never get spawned on first connection.
func (s *Supervisor) WithSocketActivation(events <-chan ports.SocketActivationEvent) *Supervisor {
	s.activation = events
	return s
}

// Run is the supervisor's single task: select between ctx cancellation, the
// exit-event channel and (if attached) the socket activation event channel.
// No other timers exist at this scope; runtime-success resets and
// restart-delay sleeps are short-lived per-spawn tasks.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.watcher.Events():
			s.handleExit(ctx, ev)
		case ev := <-s.activation:
			s.handleActivation(ctx, ev)
		}
	}
}

// handleActivation spawns (or re-spawns, in single-instance mode) the
// service bound to a socket the moment it becomes active, handing it the
// accepted/listening descriptor per the LISTEN_FDS convention.
func (s *Supervisor) handleActivation(ctx context.Context, ev ports.SocketActivationEvent) {
	p, err := s.repo.FindByName(ev.ServiceName)
	if err != nil {
		log.Warnf("supervisor: socket activation for unknown service %s: %v", ev.ServiceName, err)
		return
	}
	if !ev.Accept && p.State == process.Running {
		// Single-instance mode: already up, this accept just wakes it.
		return
	}

	fdEnvVar := ""
	if p.Config.SocketActivation != nil {
		fdEnvVar = p.Config.SocketActivation.FdEnvVar
	}

	if ev.Accept {
		// Per-connection mode: the stored entity is a template; each
		// connection is served by a fresh clone of it.
		inst, err := p.CloneWithName(fmt.Sprintf("%s-%s", p.Name, process.NewID()))
		if err != nil {
			log.Warnf("supervisor: socket activation %s: clone: %v", p.Name, err)
			return
		}
		p = inst
	}

	if err := p.MarkStarting(); err != nil {
		log.Warnf("supervisor: socket activation %s: %v", p.Name, err)
		return
	}
	if err := s.repo.Save(p); err != nil {
		log.Errorf("supervisor: save %s: %v", p.Name, err)
		return
	}
	t := s.tracker(p.ID, p.Config.RestartDelaySec)
	s.doSpawnWithFd(ctx, p, t, ev.FD, fdEnvVar)
}

func (s *Supervisor) tracker(id process.ID, baseDelay int64) *process.RestartTracker {
	s.trackersMu.Lock()
	defer s.trackersMu.Unlock()
	t, ok := s.trackers[id]
	if !ok {
		t = process.NewRestartTracker(baseDelay)
		s.trackers[id] = t
	}
	return t
}

// handleExit applies the restart-policy state transition for one exit event.
func (s *Supervisor) handleExit(ctx context.Context, ev ports.ProcessExitEvent) {
	p, err := s.repo.FindByID(ev.ProcessID)
	if err != nil {
		log.Warnf("supervisor: exit event for unknown process %s: %v", ev.ProcessID, err)
		return
	}

	removePIDFile(p)

	prevStarted := p.StartedAt
	if err := p.MarkExited(ev.ExitCode); err != nil {
		log.Warnf("supervisor: %s: %v", p.Name, err)
	}

	t := s.tracker(p.ID, p.Config.RestartDelaySec)
	switch p.State {
	case process.Stopped:
		// explicit stop cascade; never adjusts failure counters, never restarts.
		s.exec.RemoveRuntimeDirectories(p.Config.RuntimeDirectory)
	case process.Exited:
		p.ResetFailures()
		t.ConsecutiveFailures = 0
	case process.Failed:
		if ranLongEnough(prevStarted, p.Config.RuntimeSuccessDuration()) {
			p.ResetFailures()
			t.ResetOnStableRun(p.Config.RestartDelaySec)
		} else {
			p.RecordFailure()
			t.ConsecutiveFailures++
		}
	}

	if err := s.repo.Save(p); err != nil {
		log.Errorf("supervisor: save %s: %v", p.Name, err)
		return
	}

	s.cascadeBindsTo(ctx, p.Name)

	if p.State != process.Stopped {
		s.attemptRestart(ctx, p.ID)
	}
}

func ranLongEnough(startedAt *time.Time, runtimeSuccess time.Duration) bool {
	if startedAt == nil {
		return false
	}
	return time.Since(*startedAt) >= runtimeSuccess
}

// cascadeBindsTo stops every Running process whose binds_to names origin,
// before origin's own restart is considered. Re-entering an already-Stopped
// node is a no-op, which makes cycles in binds_to harmless.
func (s *Supervisor) cascadeBindsTo(ctx context.Context, originName string) {
	all, err := s.repo.FindAll()
	if err != nil {
		log.Errorf("supervisor: cascade lookup failed: %v", err)
		return
	}
	for _, dependent := range all {
		if dependent.State != process.Running {
			continue
		}
		if !contains(dependent.Config.BindsTo, originName) {
			continue
		}
		s.stopForCascade(dependent)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// stopForCascade signals SIGTERM (hard-coded to 15; the bound process's
// own kill_signal is deliberately not used here) honoring kill_mode, then
// moves Running -> Stopping -> Stopped.
func (s *Supervisor) stopForCascade(p *process.Process) {
	if err := p.MarkStopping(); err != nil {
		log.Warnf("supervisor: cascade stop %s: %v", p.Name, err)
		return
	}
	if pid := p.PID; pid != nil {
		const sigterm = 15
		if err := s.exec.KillWithMode(*pid, sigterm, p.Config.KillMode); err != nil {
			log.Warnf("supervisor: cascade kill %s: %v", p.Name, err)
		}
	}
	if err := p.MarkStopped(); err != nil {
		log.Warnf("supervisor: cascade finalize %s: %v", p.Name, err)
		return
	}
	if err := s.repo.Save(p); err != nil {
		log.Errorf("supervisor: cascade save %s: %v", p.Name, err)
	}
	s.exec.RemoveRuntimeDirectories(p.Config.RuntimeDirectory)
}

// attemptRestart checks burst limits and, if clear, schedules a delayed
// respawn.
func (s *Supervisor) attemptRestart(ctx context.Context, id process.ID) {
	p, err := s.repo.FindByID(id)
	if err != nil {
		return
	}
	if !p.ShouldRestart() {
		return
	}

	t := s.tracker(id, p.Config.RestartDelaySec)
	if t.IsBurstLimited(p.Config.StartLimitBurst, p.Config.StartLimitIntervalSec) {
		log.Warnf("supervisor: %s burst-limited, not restarting", p.Name)
		return
	}

	delay := t.Delay()
	go s.runRestart(ctx, id, t, delay)
}

func (s *Supervisor) runRestart(ctx context.Context, id process.ID, t *process.RestartTracker, delay time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	p, err := s.repo.FindByID(id)
	if err != nil {
		return
	}
	// Advance the backoff for the *next* attempt only after this one has
	// been committed to.
	t.AdvanceBackoff(p.Config.RestartMaxDelaySec)

	if err := p.MarkRestarting(); err != nil {
		log.Warnf("supervisor: %s: %v", p.Name, err)
		return
	}
	if err := s.repo.Save(p); err != nil {
		log.Errorf("supervisor: save %s: %v", p.Name, err)
		return
	}

	// Re-read: abort if state changed away from Restarting between save and
	// here (another caller may have intervened).
	reloaded, err := s.repo.FindByID(id)
	if err != nil || reloaded.State != process.Restarting {
		return
	}

	// Restarting -> Starting: doSpawn/finalizeRunning only ever transition
	// out of Starting, never out of Restarting directly.
	if err := reloaded.MarkStarting(); err != nil {
		log.Warnf("supervisor: %s: %v", reloaded.Name, err)
		return
	}
	if err := s.repo.Save(reloaded); err != nil {
		log.Errorf("supervisor: save %s: %v", reloaded.Name, err)
		return
	}

	// Recorded here, not in doSpawn: only actual restart attempts count
	// against start_limit_burst/start_limit_interval_sec, not the initial
	// explicit start or a socket activation's first spawn.
	t.RecordRestart(time.Now(), reloaded.Config.StartLimitIntervalSec)
	s.doSpawn(ctx, reloaded, t)
}

// StartProcess drives an explicit start request (external caller via
// repository/executor): Created|Stopped -> Starting -> Running, registering
// with the watcher and health monitor on success.
func (s *Supervisor) StartProcess(ctx context.Context, id process.ID) error {
	p, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}
	if err := p.MarkStarting(); err != nil {
		return err
	}
	if err := s.repo.Save(p); err != nil {
		return err
	}
	t := s.tracker(id, p.Config.RestartDelaySec)
	s.doSpawn(ctx, p, t)
	return nil
}

func (s *Supervisor) doSpawn(ctx context.Context, p *process.Process, t *process.RestartTracker) {
	s.doSpawnWithFd(ctx, p, t, 0, "")
}

// doSpawnWithFd is doSpawn's full implementation; fd/fdEnvVar are non-zero
// only for socket-activated spawns, where the activation manager's accepted
// or listening descriptor is handed to the child as fd 3.
func (s *Supervisor) doSpawnWithFd(ctx context.Context, p *process.Process, t *process.RestartTracker, fd uintptr, fdEnvVar string) {
	fileVars, err := envfile.Load(p.Config.EnvironmentFile)
	if err != nil {
		log.Warnf("supervisor: %s: environment_file: %v", p.Name, err)
	}
	env := envfile.Compose(fileVars, p.Config.Env)

	spawnCfg := ports.SpawnConfig{
		ProcessName:         p.Name,
		Command:             p.Config.Command,
		Args:                p.Config.Args,
		Env:                 env,
		WorkingDir:          p.Config.WorkingDir,
		User:                p.Config.User,
		Group:               p.Config.Group,
		Stdout:              p.Config.Stdout,
		Stderr:              p.Config.Stderr,
		KillMode:            p.Config.KillMode,
		ResourceLimits:      p.Config.ResourceLimits,
		AmbientCapabilities: p.Config.AmbientCapabilities,
		RuntimeDirectories:  p.Config.RuntimeDirectory,
		ExecStartPre:        p.Config.ExecStartPre,
		ExecStartPost:       p.Config.ExecStartPost,
		ExecStopPost:        p.Config.ExecStopPost,
	}
	if fd != 0 {
		spawnCfg.ExtraFiles = []uintptr{fd}
		spawnCfg.ListenFdNames = []string{fdEnvVar}
	}

	var notifier *notifysocket.Listener
	if p.Config.ProcessType == process.Notify {
		n, err := notifysocket.Create("", p.Name)
		if err != nil {
			log.Warnf("supervisor: %s: notify socket: %v, proceeding without readiness gating", p.Name, err)
		} else {
			notifier = n
			spawnCfg.Env = append(spawnCfg.Env, "NOTIFY_SOCKET="+n.Path)
		}
	}

	result, err := s.exec.Spawn(ctx, spawnCfg)
	if err != nil {
		log.Warnf("supervisor: spawn %s failed: %v", p.Name, err)
		p.RecordFailure()
		_ = p.MarkExited(1)
		_ = s.repo.Save(p)
		notifier.Close()
		return
	}

	if result.ExitHandle != nil {
		s.watcher.Register(p.ID, result.PID, result.ExitHandle)
	}

	if notifier != nil {
		go s.gateOnNotifyReady(ctx, p.ID, result.PID, notifier, time.Duration(p.Config.TimeoutStartSec)*time.Second)
		return
	}

	s.finalizeRunning(ctx, p.ID, result.PID)
}

// finalizeRunning marks a freshly spawned process Running and starts its
// health/runtime-success timers. Called immediately for process types
// without a readiness protocol, or once NOTIFY_SOCKET delivers READY=1.
func (s *Supervisor) finalizeRunning(ctx context.Context, id process.ID, pid int) {
	p, err := s.repo.FindByID(id)
	if err != nil {
		return
	}
	p.IncrementRunCount()
	if err := p.MarkRunning(pid); err != nil {
		log.Warnf("supervisor: %s: %v", p.Name, err)
		return
	}
	if err := s.repo.Save(p); err != nil {
		log.Errorf("supervisor: save %s: %v", p.Name, err)
		return
	}

	if s.health != nil && p.Config.HealthCheck != nil {
		s.health.Start(ctx, p.ID, *p.Config.HealthCheck)
	}
	s.startRuntimeSuccessTimer(ctx, p.ID, p.Config.RuntimeSuccessDuration())
}

// gateOnNotifyReady blocks a process_type=notify spawn in Starting until the
// child sends READY=1 on NOTIFY_SOCKET, or timeout elapses (0 = unbounded,
// matching TimeoutStartSec's documented default). A timed-out child is
// killed; its own exit event then drives the normal failure path.
func (s *Supervisor) gateOnNotifyReady(ctx context.Context, id process.ID, pid int, notifier *notifysocket.Listener, timeout time.Duration) {
	defer notifier.Close()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-notifier.Ready():
		s.finalizeRunning(ctx, id, pid)
	case <-timeoutCh:
		log.Warnf("supervisor: process %s did not signal READY=1 within timeout_start_sec, killing", id)
		_ = s.exec.Kill(pid, 9)
	case <-ctx.Done():
	}
}

// startRuntimeSuccessTimer runs a per-spawn timer: after runtime_success_sec,
// if the process is still Running and had accrued failures, reset them.
func (s *Supervisor) startRuntimeSuccessTimer(ctx context.Context, id process.ID, d time.Duration) {
	if d <= 0 {
		return
	}
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
		p, err := s.repo.FindByID(id)
		if err != nil || p.State != process.Running {
			return
		}
		if p.ConsecutiveFailures == 0 {
			return
		}
		p.ResetFailures()
		if t := s.trackerIfExists(id); t != nil {
			t.ResetOnStableRun(p.Config.RestartDelaySec)
		}
		if err := s.repo.Save(p); err != nil {
			log.Errorf("supervisor: runtime-success save %s: %v", p.Name, err)
		}
	}()
}

func (s *Supervisor) trackerIfExists(id process.ID) *process.RestartTracker {
	s.trackersMu.Lock()
	defer s.trackersMu.Unlock()
	return s.trackers[id]
}

// StopProcess drives an explicit stop request: Running -> Stopping, signal
// per kill_mode/kill_signal, then Stopping -> Stopped once the watcher's
// exit event is delivered. Since the explicit stop only marks Stopping and
// sends the signal, the final Stopped transition happens in handleExit,
// where an explicit stop always wins over a restart decision.
func (s *Supervisor) StopProcess(id process.ID) error {
	p, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}
	if err := p.MarkStopping(); err != nil {
		return err
	}
	if err := s.repo.Save(p); err != nil {
		return err
	}
	if p.PID != nil {
		if err := s.exec.KillWithMode(*p.PID, p.Config.KillSignal, p.Config.KillMode); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown fans SIGTERM out to every Running process honoring its own
// kill_mode/kill_signal, waits up to each entity's timeout_stop_sec, then
// escalates to SIGKILL via the same group semantics. Per-process failures
// are aggregated rather than discarded, so a caller driving a daemon's exit
// code can tell whether every process actually stopped cleanly.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	all, err := s.repo.FindAll()
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	for _, p := range all {
		if p.State != process.Running {
			continue
		}
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.shutdownOne(ctx, p); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.Name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs.ErrorOrNil()
}

func (s *Supervisor) shutdownOne(ctx context.Context, p *process.Process) error {
	if p.PID == nil {
		return nil
	}
	pid := *p.PID
	if err := s.exec.KillWithMode(pid, p.Config.KillSignal, p.Config.KillMode); err != nil {
		log.Warnf("supervisor: shutdown signal %s: %v", p.Name, err)
	}

	timeout := time.Duration(p.Config.TimeoutStopSec) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.exec.WaitForExit(waitCtx, pid); err != nil {
		log.Warnf("supervisor: %s did not exit within timeout_stop_sec, escalating to SIGKILL", p.Name)
		const sigkill = 9
		if err := s.exec.KillWithMode(pid, sigkill, p.Config.KillMode); err != nil {
			log.Warnf("supervisor: shutdown SIGKILL %s: %v", p.Name, err)
			return err
		}
	}
	s.exec.RemoveRuntimeDirectories(p.Config.RuntimeDirectory)
	return nil
}

// removePIDFile removes the entity's configured pid file; absence of the
// file on removal is not an error.
func removePIDFile(p *process.Process) {
	if p.Config.PidFile == "" {
		return
	}
	if err := os.Remove(p.Config.PidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debugf("supervisor: remove pidfile %s: %v", p.Config.PidFile, err)
	}
}
