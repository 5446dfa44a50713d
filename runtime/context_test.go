package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gopluginhost/pluginhost/errors"
	"github.com/gopluginhost/pluginhost/logging"
	"github.com/gopluginhost/pluginhost/plugin"
)

// destroyingActivatable calls Destroy on its own context from inside
// whichever callback "when" names, to exercise the invocation guard
// (InvalidInvocation must come back instead of a deadlock).
type destroyingActivatable struct {
	ctx        *Context
	when       string // "start" or "stop"
	destroyErr error
}

func (d *destroyingActivatable) Start(context.Context) error {
	if d.when == "start" {
		d.destroyErr = d.ctx.Destroy()
	}
	return nil
}

func (d *destroyingActivatable) Stop(context.Context) {
	if d.when == "stop" {
		d.destroyErr = d.ctx.Destroy()
	}
}

func TestStart_IdempotentOnSecondCall(t *testing.T) {
	ctx := NewContext()
	events := recordEvents(ctx)

	a := mustDescriptor(t, "a")
	ctx.InstallInProcess(a, &stubActivatable{})

	if err := ctx.Start("a"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	n := len(*events)

	if err := ctx.Start("a"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if len(*events) != n {
		t.Errorf("second start should be a no-op, got %d new events", len(*events)-n)
	}
}

func TestResolve_IdempotentWhenAlreadyResolved(t *testing.T) {
	ctx := NewContext()
	events := recordEvents(ctx)

	a := mustDescriptor(t, "a")
	ctx.InstallInProcess(a, &stubActivatable{})

	if err := ctx.Resolve("a"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	n := len(*events)

	if err := ctx.Resolve("a"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if len(*events) != n {
		t.Error("resolve on an already-resolved plug-in should emit no new events")
	}
}

func TestIdentifierTooLong_RejectedAtConstruction(t *testing.T) {
	long := make([]byte, plugin.MaxIdentifierBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := plugin.NewDescriptor(string(long))
	if err == nil {
		t.Fatal("expected an error for an over-length identifier")
	}
}

func TestVersionMatchNone_AcceptsAnythingIncludingNil(t *testing.T) {
	if !plugin.VersionMatches(nil, nil, plugin.MatchNone) {
		t.Error("MatchNone with nil/nil should accept")
	}
	req := plugin.Version{Major: 9}
	if !plugin.VersionMatches(nil, &req, plugin.MatchNone) {
		t.Error("MatchNone should accept a nil actual against any required version")
	}
}

func TestUninstallWithOutstandingHandle_IDUnknownButHandleValid(t *testing.T) {
	ctx := NewContext()
	a := mustDescriptor(t, "a")
	ctx.InstallInProcess(a, &stubActivatable{})

	handle, err := ctx.GetInfo("a")
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}

	if err := ctx.Uninstall("a"); err != nil {
		t.Fatalf("uninstall: %v", err)
	}

	if _, err := ctx.GetInfo("a"); !errorsIsUnknown(err) {
		t.Errorf("GetInfo after uninstall should be Unknown, got %v", err)
	}

	if handle.Descriptor().Identifier != "a" {
		t.Error("the held handle should remain valid and readable after uninstall")
	}
	ctx.ReleaseInfo(handle)
}

func TestDoubleRelease_IsLoggedNotPanicked(t *testing.T) {
	ctx := NewContext()
	a := mustDescriptor(t, "a")
	ctx.InstallInProcess(a, &stubActivatable{})

	var warnings []plugin.LogEntry
	ctx.AddLogListener(func(e plugin.LogEntry, _ any) { warnings = append(warnings, e) }, plugin.SeverityWarn, nil)

	handle, _ := ctx.GetInfo("a")
	ctx.ReleaseInfo(handle)
	ctx.ReleaseInfo(handle) // must not panic
	if len(warnings) != 1 || warnings[0].Severity != plugin.SeverityWarn {
		t.Errorf("double release should be logged as exactly one warning, got %+v", warnings)
	}
}

func TestListInfo_AtomicBatchAcquisition(t *testing.T) {
	ctx := NewContext()
	ctx.InstallInProcess(mustDescriptor(t, "a"), &stubActivatable{})
	ctx.InstallInProcess(mustDescriptor(t, "b"), &stubActivatable{})

	handles := ctx.ListInfo()
	if len(handles) != 2 {
		t.Fatalf("expected 2 handles, got %d", len(handles))
	}
	for _, h := range handles {
		if h.Descriptor().UseCount() < 1 {
			t.Errorf("descriptor %s should have a positive use-count", h.Descriptor().Identifier)
		}
		h.Release()
	}
}

func TestUninstallAll_EmptiesEverything(t *testing.T) {
	ctx := NewContext()
	a := mustDescriptor(t, "a")
	b := mustDescriptor(t, "b", plugin.WithImports(plugin.Import{TargetID: "a"}))
	ctx.InstallInProcess(a, &stubActivatable{})
	ctx.InstallInProcess(b, &stubActivatable{})
	ctx.Start("b")

	ctx.UninstallAll()

	if len(ctx.plugins) != 0 {
		t.Errorf("id map should be empty, has %d entries", len(ctx.plugins))
	}
	if len(ctx.extensionPoints) != 0 || len(ctx.extensions) != 0 {
		t.Error("extension maps should be empty")
	}
	if len(ctx.started) != 0 {
		t.Error("started-plugins should be empty")
	}
}

func TestDestroy_FromInsideStartCallback_InvalidInvocationNotDeadlock(t *testing.T) {
	ctx := NewContext()
	act := &destroyingActivatable{ctx: ctx, when: "start"}
	ctx.InstallInProcess(mustDescriptor(t, "a"), act)

	done := make(chan error, 1)
	go func() { done <- ctx.Start("a") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start never returned: Destroy called from inside the start callback deadlocked")
	}

	var fe *errors.Error
	if !stderrorsAs(act.destroyErr, &fe) || fe.Kind != errors.KindInvalidInvocation {
		t.Fatalf("nested Destroy: expected KindInvalidInvocation, got %v", act.destroyErr)
	}
}

func TestDestroy_FromInsideStopCallback_InvalidInvocationNotDeadlock(t *testing.T) {
	ctx := NewContext()
	act := &destroyingActivatable{ctx: ctx, when: "stop"}
	ctx.InstallInProcess(mustDescriptor(t, "a"), act)
	if err := ctx.Start("a"); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() { ctx.Stop("a"); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned: Destroy called from inside the stop callback deadlocked")
	}

	var fe *errors.Error
	if !stderrorsAs(act.destroyErr, &fe) || fe.Kind != errors.KindInvalidInvocation {
		t.Fatalf("nested Destroy: expected KindInvalidInvocation, got %v", act.destroyErr)
	}
}

func TestWithLoggerFactory_InstallUsesPerPluginLogger(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.Director = t.TempDir()
	cfg.LogInTerminal = false
	factory := logging.NewFactory(cfg)

	ctx := NewContext(WithLoggerFactory(factory))
	if _, err := ctx.InstallInProcess(mustDescriptor(t, "a"), &stubActivatable{}); err != nil {
		t.Fatalf("install: %v", err)
	}

	if _, ok := factory.GetLogger("a").(logging.Logger); !ok {
		t.Fatal("expected factory to produce a Logger for the installed plug-in")
	}

	logFile := filepath.Join(cfg.Director, time.Now().Format("2006-01-02"), "info.log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("install should have been logged through the factory: %v", err)
	}
	if !strings.Contains(string(data), `"logger":"a"`) {
		t.Errorf("install entry should carry plug-in a's logger name, got %s", data)
	}
}

func errorsIsUnknown(err error) bool {
	var fe *errors.Error
	if e, ok := err.(*errors.Error); ok {
		fe = e
		return fe.Kind == errors.KindUnknown
	}
	return false
}
