// Package deploy implements the Deployment Pipeline: it owns the
// supervisor-wide runtime map (name -> running process + log pipe +
// health prober) and drives every app through extract/clone, classify,
// install, snapshot, allocate, register, and start.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/glinrdock-paas/supervisor/internal/archive"
	"github.com/glinrdock-paas/supervisor/internal/audit"
	"github.com/glinrdock-paas/supervisor/internal/classify"
	"github.com/glinrdock-paas/supervisor/internal/health"
	"github.com/glinrdock-paas/supervisor/internal/logpipe"
	"github.com/glinrdock-paas/supervisor/internal/metrics"
	"github.com/glinrdock-paas/supervisor/internal/port"
	"github.com/glinrdock-paas/supervisor/internal/process"
	"github.com/glinrdock-paas/supervisor/internal/registry"
	"github.com/glinrdock-paas/supervisor/internal/resource"
	"github.com/glinrdock-paas/supervisor/internal/staticserve"
	"github.com/glinrdock-paas/supervisor/internal/version"
)

// ErrInstallFailed wraps a dependency-install command failure.
var ErrInstallFailed = errors.New("deploy: dependency install failed")

// ErrCloneFailed wraps a git clone/pull failure.
var ErrCloneFailed = errors.New("deploy: git operation failed")

// Source is either raw archive bytes or a git remote to shallow-clone.
type Source struct {
	Archive []byte
	GitURL  string
	Branch  string
}

// Config holds the pipeline's operating parameters, sourced from
// internal/config.Config.
type Config struct {
	AppsRoot          string
	PortFloor         int
	AutoRestartMax    int
	AutoRestartWindow time.Duration
	LogMaxSizeMB      int
	LogMaxFiles       int
	StopGrace         time.Duration
}

// runtime bundles the live, in-memory pieces the registry's JSON document
// does not capture: the process handle, its log pipe, and its prober.
// This is the supervisor-wide process table the concurrency model
// describes — guarded only for map lookup/insert/remove, never held
// across blocking child I/O.
type runtime struct {
	supervisor *process.Supervisor
	logs       *logpipe.Pipe
	prober     *health.Prober
	versions   *version.Store
}

// Pipeline is the composition root for every deploy, redeploy, lifecycle,
// and rollback operation.
type Pipeline struct {
	cfg      Config
	reg      *registry.Registry
	pa       *port.Allocator
	auditLog *audit.Logger

	mu       sync.Mutex
	runtimes map[string]*runtime

	resourceMu   sync.Mutex
	resourceSubs map[chan map[string]resource.Snapshot]struct{}
}

// New builds a Pipeline. It does not yet start any previously registered
// apps; call Restore for that.
func New(cfg Config, reg *registry.Registry) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		reg:          reg,
		pa:           port.NewAllocator(cfg.PortFloor),
		runtimes:     make(map[string]*runtime),
		resourceSubs: make(map[chan map[string]resource.Snapshot]struct{}),
	}
}

// SetAuditLogger attaches the audit trail the pipeline's own lifecycle
// operations (deploy, start, stop, restart, rollback, crash loop, env
// update) record through. A nil logger, the default, silently disables
// auditing — tests construct a Pipeline without one.
func (p *Pipeline) SetAuditLogger(logger *audit.Logger) {
	p.auditLog = logger
}

func (p *Pipeline) recordAudit(name string, action audit.Action, meta map[string]any) {
	if p.auditLog == nil {
		return
	}
	p.auditLog.Record(context.Background(), name, action, meta)
}

func (p *Pipeline) appDir(name string) string {
	return filepath.Join(p.cfg.AppsRoot, "apps", name)
}

// Deploy runs the full pipeline: materialize source, classify, install,
// snapshot, allocate a port, persist the registry entry, and start the
// process. On any failure the partially created app directory is removed
// and nothing is registered.
func (p *Pipeline) Deploy(requestedName string, src Source) (registry.App, error) {
	name := registry.NormalizeName(requestedName)
	if name == "" {
		return registry.App{}, fmt.Errorf("%w: empty after normalization", registry.ErrInvalidName)
	}

	if _, err := p.reg.Get(name); err == nil {
		return registry.App{}, registry.ErrAlreadyExists
	}

	dir := p.appDir(name)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return registry.App{}, fmt.Errorf("deploy: failed to create apps root: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return registry.App{}, registry.ErrAlreadyExists
		}
		return registry.App{}, fmt.Errorf("deploy: failed to create app dir: %w", err)
	}

	method := version.MethodArchive
	if src.Archive == nil {
		method = version.MethodGit
	}

	start := time.Now()
	app, err := p.materializeAndRegister(name, dir, src, method)
	if err != nil {
		os.RemoveAll(dir)
		metrics.RecordDeploy(false, time.Since(start))
		p.recordAudit(name, audit.ActionDeploy, map[string]any{"error": err.Error()})
		return registry.App{}, err
	}
	metrics.RecordDeploy(true, time.Since(start))
	p.recordAudit(name, audit.ActionDeploy, map[string]any{"port": app.Port, "kind": string(app.Kind)})
	return app, nil
}

func (p *Pipeline) materializeAndRegister(name, dir string, src Source, method version.Method) (registry.App, error) {
	commitID, err := p.materialize(dir, src)
	if err != nil {
		return registry.App{}, err
	}

	result, err := classify.Classify(dir)
	if err != nil {
		return registry.App{}, err
	}

	if result.Kind == classify.KindNode {
		if err := p.installDependencies(result.RootPath); err != nil {
			return registry.App{}, err
		}
	}

	versions := version.NewStore(dir)
	v, err := versions.Snapshot(method, src.GitURL, src.Branch, commitID)
	if err != nil {
		return registry.App{}, err
	}

	assigned, err := p.reg.AssignedPorts()
	if err != nil {
		return registry.App{}, err
	}
	appPort, err := p.pa.Allocate(assigned)
	if err != nil {
		return registry.App{}, err
	}

	kind := registry.KindStatic
	startCommand, startArgs := result.StartSpec.Command, result.StartSpec.Args
	if result.Kind == classify.KindNode {
		kind = registry.KindNode
	} else {
		startCommand, startArgs, err = staticStartSpec()
		if err != nil {
			return registry.App{}, err
		}
	}

	app := registry.App{
		Name:         name,
		Kind:         kind,
		WorkingDir:   result.RootPath,
		Port:         appPort,
		Env:          map[string]string{},
		AutoRestart:  true,
		RepoURL:      src.GitURL,
		Branch:       src.Branch,
		StartCommand: startCommand,
		StartArgs:    startArgs,
		Status:       registry.StatusStopped,
		Versions:     []version.Version{v},
	}
	app.CurrentVersion = v.ID

	if err := p.reg.Create(app); err != nil {
		return registry.App{}, err
	}

	rt, err := p.ensureRuntime(name)
	if err != nil {
		return registry.App{}, err
	}
	rt.versions.Load(app.Versions)

	if err := p.Start(name); err != nil {
		if delErr := p.reg.Delete(name); delErr != nil {
			log.Error().Err(delErr).Str("app", name).Msg("failed to roll back registry entry after start failure")
		}
		return registry.App{}, err
	}

	return p.reg.Get(name)
}

// materialize fills dir with the app's source, returning a short commit id
// for git sources (empty for archives).
func (p *Pipeline) materialize(dir string, src Source) (string, error) {
	if src.Archive != nil {
		if err := archive.Extract(src.Archive, dir); err != nil {
			return "", err
		}
		return "", nil
	}
	return p.cloneShallow(dir, src.GitURL, src.Branch)
}

func (p *Pipeline) cloneShallow(dir, gitURL, branch string) (string, error) {
	cmd := exec.Command("git", "clone", "--depth=1", "-b", branch, gitURL, dir)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrCloneFailed, err, string(output))
	}

	commitCmd := exec.Command("git", "-C", dir, "rev-parse", "--short", "HEAD")
	output, err := commitCmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: failed to read commit id: %s", ErrCloneFailed, err)
	}
	return trimNewline(string(output)), nil
}

func (p *Pipeline) pullLatest(dir, branch string) (string, error) {
	cmd := exec.Command("git", "-C", dir, "pull", "origin", branch)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrCloneFailed, err, string(output))
	}

	commitCmd := exec.Command("git", "-C", dir, "rev-parse", "--short", "HEAD")
	output, err := commitCmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: failed to read commit id: %s", ErrCloneFailed, err)
	}
	return trimNewline(string(output)), nil
}

// installDependencies runs the package manager's production install,
// matching the classifier's lockfile-based choice.
func (p *Pipeline) installDependencies(root string) error {
	mgr := classify.PackageManager(root)

	var cmd *exec.Cmd
	switch mgr {
	case "pnpm":
		cmd = exec.Command("pnpm", "install", "--prod")
	case "yarn":
		cmd = exec.Command("yarn", "install", "--production")
	case "npm":
		if _, err := os.Stat(filepath.Join(root, "package-lock.json")); err == nil {
			cmd = exec.Command("npm", "ci", "--omit=dev")
		} else {
			cmd = exec.Command("npm", "install", "--omit=dev")
		}
	default:
		cmd = exec.Command("npm", "install", "--omit=dev")
	}
	cmd.Dir = root

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrInstallFailed, err, string(output))
	}
	return nil
}

// ensureRuntime returns the in-memory runtime for name, creating it (log
// pipe, supervisor, version store) on first use.
func (p *Pipeline) ensureRuntime(name string) (*runtime, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rt, ok := p.runtimes[name]; ok {
		return rt, nil
	}

	logDir := filepath.Join(p.cfg.AppsRoot, "logs")
	logs, err := logpipe.New(logDir, name, p.cfg.LogMaxSizeMB, p.cfg.LogMaxFiles)
	if err != nil {
		return nil, err
	}

	sup := process.New(name, logs, p.cfg.AutoRestartMax, p.cfg.AutoRestartWindow)
	sup.OnStateChange(func(state process.State) {
		p.persistState(name, state)
	})

	rt := &runtime{
		supervisor: sup,
		logs:       logs,
		versions:   version.NewStore(p.appDir(name)),
	}
	p.runtimes[name] = rt
	return rt, nil
}

func (p *Pipeline) getRuntime(name string) (*runtime, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rt, ok := p.runtimes[name]
	return rt, ok
}

// persistState mirrors a supervisor state transition into the registry's
// persisted status field.
func (p *Pipeline) persistState(name string, state process.State) {
	status := registry.StatusStopped
	switch state {
	case process.StateRunning:
		status = registry.StatusRunning
	case process.StateRestarting:
		status = registry.StatusRunning
		metrics.RecordRestart(name)
	case process.StateStopping:
		status = registry.StatusStopping
	case process.StateCrashLoop:
		status = registry.StatusCrashed
		metrics.RecordCrashLoop()
		p.recordAudit(name, audit.ActionCrashLoop, nil)
	}

	err := p.reg.Update(name, func(a registry.App) (registry.App, error) {
		a.Status = status
		return a, nil
	})
	if err != nil {
		log.Error().Err(err).Str("app", name).Msg("failed to persist status transition")
	}
}

// Start starts (or restarts, per the crash-restart policy) the named app's
// process using its persisted start spec and assigned port.
func (p *Pipeline) Start(name string) error {
	app, err := p.reg.Get(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(app.WorkingDir); err != nil {
		return fmt.Errorf("deploy: working dir gone for %q: %w", name, err)
	}

	rt, err := p.ensureRuntime(name)
	if err != nil {
		return err
	}

	env := make(map[string]string, len(app.Env))
	for k, v := range app.Env {
		env[k] = v
	}

	if err := rt.supervisor.Start(process.StartSpec{
		Command: app.StartCommand,
		Args:    app.StartArgs,
		Dir:     app.WorkingDir,
		Port:    app.Port,
		Env:     env,
	}); err != nil {
		return err
	}

	rt.prober = health.NewProber(app.Port, "/")
	p.recordAudit(name, audit.ActionStart, nil)

	return nil
}

// Stop stops the named app's process, clearing its restart counter.
func (p *Pipeline) Stop(name string) error {
	rt, ok := p.getRuntime(name)
	if !ok {
		return process.ErrNotRunning
	}
	if err := rt.supervisor.Stop(p.cfg.StopGrace); err != nil {
		return err
	}
	p.recordAudit(name, audit.ActionStop, nil)
	return nil
}

// Restart stops then starts the named app.
func (p *Pipeline) Restart(name string) error {
	if err := p.Stop(name); err != nil && !errors.Is(err, process.ErrNotRunning) {
		return err
	}
	if err := p.Start(name); err != nil {
		return err
	}
	p.recordAudit(name, audit.ActionRestart, nil)
	return nil
}

// Delete stops the app, removes its working directory, and removes its
// registry entry.
func (p *Pipeline) Delete(name string) error {
	if err := p.Stop(name); err != nil && !errors.Is(err, process.ErrNotRunning) {
		return err
	}

	p.mu.Lock()
	rt, ok := p.runtimes[name]
	delete(p.runtimes, name)
	p.mu.Unlock()
	if ok {
		rt.logs.Close()
	}

	app, err := p.reg.Get(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(app.WorkingDir); err != nil {
		return fmt.Errorf("deploy: failed to remove working dir: %w", err)
	}

	if err := p.reg.Delete(name); err != nil {
		return err
	}
	p.recordAudit(name, audit.ActionDelete, nil)
	return nil
}

// Rollback restores the app's working directory to version id and
// restarts it. Rolling back to the currently active version is a no-op
// reported as ErrAlreadyAtVersion.
func (p *Pipeline) Rollback(name, versionID string) error {
	app, err := p.reg.Get(name)
	if err != nil {
		return err
	}
	if app.CurrentVersion == versionID {
		return version.ErrAlreadyAtVersion
	}

	rt, err := p.ensureRuntime(name)
	if err != nil {
		return err
	}
	rt.versions.Load(app.Versions)

	if err := p.Stop(name); err != nil && !errors.Is(err, process.ErrNotRunning) {
		return err
	}

	if err := rt.versions.Restore(versionID); err != nil {
		return err
	}

	if err := p.reg.Update(name, func(a registry.App) (registry.App, error) {
		a.CurrentVersion = versionID
		return a, nil
	}); err != nil {
		return err
	}

	if err := p.Start(name); err != nil {
		metrics.RecordRollback(false)
		p.recordAudit(name, audit.ActionRollback, map[string]any{"version": versionID, "error": err.Error()})
		return err
	}
	metrics.RecordRollback(true)
	p.recordAudit(name, audit.ActionRollback, map[string]any{"version": versionID})
	return nil
}

// Redeploy pulls the latest commit on the app's recorded branch,
// reinstalls dependencies for node apps, snapshots a new version, and
// restarts — the webhook-triggered path.
func (p *Pipeline) Redeploy(name string) error {
	app, err := p.reg.Get(name)
	if err != nil {
		return err
	}

	rt, err := p.ensureRuntime(name)
	if err != nil {
		return err
	}
	rt.versions.Load(app.Versions)

	if err := p.Stop(name); err != nil && !errors.Is(err, process.ErrNotRunning) {
		return err
	}

	commitID, err := p.pullLatest(app.WorkingDir, app.Branch)
	if err != nil {
		return err
	}

	if app.Kind == registry.KindNode {
		if err := p.installDependencies(app.WorkingDir); err != nil {
			return err
		}
	}

	v, err := rt.versions.Snapshot(version.MethodWebhook, app.RepoURL, app.Branch, commitID)
	if err != nil {
		return err
	}

	if err := p.reg.Update(name, func(a registry.App) (registry.App, error) {
		a.CurrentVersion = v.ID
		a.Versions = append(a.Versions, v)
		return a, nil
	}); err != nil {
		return err
	}

	return p.Start(name)
}

// Sample takes an on-demand resource reading for the named app's process.
func (p *Pipeline) Sample(ctx context.Context, name string) (resource.Sample, error) {
	rt, ok := p.getRuntime(name)
	if !ok {
		return resource.Sample{}, process.ErrNotRunning
	}
	pid := rt.supervisor.PID()
	if pid == 0 {
		return resource.Sample{}, process.ErrNotRunning
	}
	return resource.NewSampler(pid).Sample(ctx)
}

// Probe runs an on-demand health check for the named app. A process that
// is not currently running reports StatusStopped without attempting a
// network probe against it.
func (p *Pipeline) Probe(ctx context.Context, name string) (health.Result, error) {
	rt, ok := p.getRuntime(name)
	if !ok {
		return health.Result{}, process.ErrNotRunning
	}
	if result, stopped := stoppedResult(rt); stopped {
		return result, nil
	}
	if rt.prober == nil {
		return health.Result{}, process.ErrNotRunning
	}
	return rt.prober.Probe(ctx), nil
}

// stoppedResult reports health.StatusStopped when rt's process is not in
// a running state, so sweeps and on-demand probes never dial a dead
// process.
func stoppedResult(rt *runtime) (health.Result, bool) {
	switch rt.supervisor.State() {
	case process.StateRunning, process.StateRestarting:
		return health.Result{}, false
	default:
		return health.Result{Status: health.StatusStopped, CheckedAt: time.Now()}, true
	}
}

// SetEnv overwrites the app's configured environment variables in the
// registry. The running process, if any, is not restarted — changes take
// effect on the next Start or Restart.
func (p *Pipeline) SetEnv(name string, env map[string]string) error {
	if err := p.reg.Update(name, func(a registry.App) (registry.App, error) {
		a.Env = env
		return a, nil
	}); err != nil {
		return err
	}
	p.recordAudit(name, audit.ActionEnvUpdate, map[string]any{"keys": envKeys(env)})
	return nil
}

func envKeys(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	return keys
}

// StartHealthSweeps probes every running app's health on a fixed interval,
// persisting one registry save per app per sweep, until ctx is canceled.
func (p *Pipeline) StartHealthSweeps(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.healthSweepOnce(ctx)
			}
		}
	}()
}

func (p *Pipeline) healthSweepOnce(ctx context.Context) {
	for _, name := range p.runtimeNames() {
		rt, ok := p.getRuntime(name)
		if !ok {
			continue
		}

		result, stopped := stoppedResult(rt)
		if !stopped {
			if rt.prober == nil {
				continue
			}
			result = rt.prober.Probe(ctx)
		}

		metrics.RecordHealthProbe(result.Status == health.StatusHealthy)

		if err := p.reg.Update(name, func(a registry.App) (registry.App, error) {
			a.Health = result
			return a, nil
		}); err != nil {
			log.Error().Err(err).Str("app", name).Msg("failed to persist health probe result")
		}
	}

	p.tallyAppCounts()
}

func (p *Pipeline) tallyAppCounts() {
	apps, err := p.reg.List()
	if err != nil {
		return
	}
	var running, crashed int
	for _, a := range apps {
		switch a.Status {
		case registry.StatusRunning:
			running++
		case registry.StatusCrashed:
			crashed++
		}
	}
	metrics.SetAppCounts(len(apps), running, crashed)
}

// SubscribeResources attaches a subscriber that receives every resource
// sweep's {name -> sample} snapshot from this point forward. The returned
// func unsubscribes and closes the channel.
func (p *Pipeline) SubscribeResources(buffer int) (<-chan map[string]resource.Snapshot, func()) {
	ch := make(chan map[string]resource.Snapshot, buffer)
	p.resourceMu.Lock()
	p.resourceSubs[ch] = struct{}{}
	p.resourceMu.Unlock()

	unsubscribe := func() {
		p.resourceMu.Lock()
		defer p.resourceMu.Unlock()
		if _, ok := p.resourceSubs[ch]; ok {
			delete(p.resourceSubs, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

func (p *Pipeline) publishResourceSnapshot(snapshot map[string]resource.Snapshot) {
	p.resourceMu.Lock()
	defer p.resourceMu.Unlock()
	for ch := range p.resourceSubs {
		select {
		case ch <- snapshot:
		default:
			log.Debug().Msg("resource subscriber channel full, dropping snapshot")
		}
	}
}

// StartResourceSweeps samples CPU/memory for every running app's process
// on a fixed interval and publishes the combined snapshot to subscribers,
// until ctx is canceled.
func (p *Pipeline) StartResourceSweeps(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.resourceSweepOnce(ctx)
			}
		}
	}()
}

func (p *Pipeline) resourceSweepOnce(ctx context.Context) {
	names := p.runtimeNames()
	snapshot := make(map[string]resource.Snapshot, len(names))

	for _, name := range names {
		rt, ok := p.getRuntime(name)
		if !ok {
			continue
		}
		pid := rt.supervisor.PID()
		if pid == 0 {
			continue
		}
		sample, err := resource.NewSampler(pid).Sample(ctx)
		if err != nil {
			continue
		}
		memMB := float64(sample.MemoryBytes) / (1024 * 1024)
		snapshot[name] = resource.Snapshot{CPUPercent: sample.CPUPercent, MemoryMB: memMB}
		metrics.SetAppResourceSample(name, sample.CPUPercent, sample.MemoryBytes)
	}

	if len(snapshot) > 0 {
		p.publishResourceSnapshot(snapshot)
	}
}

func (p *Pipeline) runtimeNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.runtimes))
	for name := range p.runtimes {
		names = append(names, name)
	}
	return names
}

// TailLogs returns the last n lines of the named app's combined log.
func (p *Pipeline) TailLogs(name string, n int) ([]string, error) {
	rt, ok := p.getRuntime(name)
	if !ok {
		return nil, process.ErrNotRunning
	}
	return rt.logs.Tail(n)
}

// SubscribeLogs attaches a live log subscriber for the named app.
func (p *Pipeline) SubscribeLogs(name string, buffer int) (<-chan logpipe.Line, func(), error) {
	rt, ok := p.getRuntime(name)
	if !ok {
		return nil, nil, process.ErrNotRunning
	}
	ch, unsubscribe := rt.logs.Subscribe(buffer)
	return ch, unsubscribe, nil
}

// UnlockCrashLoop clears crash-loop protection and allows a manual Start.
func (p *Pipeline) UnlockCrashLoop(name string) error {
	rt, ok := p.getRuntime(name)
	if !ok {
		return process.ErrNotRunning
	}
	return rt.supervisor.Unlock()
}

// Restore re-attaches runtimes and starts every app whose persisted status
// was running, called once at process startup after reading the registry
// back from disk.
func (p *Pipeline) Restore() error {
	apps, err := p.reg.List()
	if err != nil {
		return err
	}
	for _, app := range apps {
		if app.Status != registry.StatusRunning {
			continue
		}
		if err := p.Start(app.Name); err != nil {
			log.Error().Err(err).Str("app", app.Name).Msg("failed to restore app on startup")
		}
	}
	return nil
}

// osExecutable resolves the supervisor's own binary path. Package-level var
// so tests can point a static deploy at a binary that fails to spawn.
var osExecutable = os.Executable

// staticStartSpec returns the (command, args) pair that re-invokes this
// same binary as a static file server, since the classifier emits no
// runnable command for static-kind projects.
func staticStartSpec() (string, []string, error) {
	exe, err := osExecutable()
	if err != nil {
		return "", nil, fmt.Errorf("deploy: failed to resolve own executable: %w", err)
	}
	return exe, []string{staticserve.Subcommand}, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
