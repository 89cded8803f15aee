package relay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/filerelay/internal/watch"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestDocument(statusPath, pattern string) *Document {
	return &Document{
		Triggers: []Trigger{NewSimpleFileTrigger("t1", statusPath, statusMap)},
		Actions:  []Action{NewSimpleFileAction("t1", pattern, outputMap)},
	}
}

func readQuiet(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return string(data)
}

// startEngine runs engine in a goroutine and returns its result channel.
func startEngine(ctx context.Context, engine *Engine) <-chan error {
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	return done
}

// pastDebounce sleeps long enough that the next poll is outside the
// handler's debounce window.
func pastDebounce() {
	time.Sleep(DebounceWindow + 20*time.Millisecond)
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestEngine_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	out1 := filepath.Join(dir, "out1.txt")
	out2 := filepath.Join(dir, "out2.txt")
	writeStatus(t, status, "on")
	writeStatus(t, out1, "")
	writeStatus(t, out2, "")

	svc := watch.NewChannelService(8)
	defer svc.Close()

	engine := NewEngine(newTestDocument(status, filepath.Join(dir, "out*.txt")), svc)

	ctx, cancel := context.WithCancel(quietContext())
	done := startEngine(ctx, engine)

	// Startup evaluation: targets reflect the on-disk state before any
	// external event arrives.
	require.Eventually(t, func() bool {
		return readQuiet(out1) == "1" && readQuiet(out2) == "1"
	}, 2*time.Second, 10*time.Millisecond, "startup evaluation should write targets")

	// A read-access event with unchanged content must not rewrite.
	writeStatus(t, out1, "sentinel")
	pastDebounce()
	require.NoError(t, svc.Access(status))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "sentinel", readQuiet(out1), "unchanged value must not dispatch")

	// A changed value updates every target.
	writeStatus(t, status, "off")
	pastDebounce()
	require.NoError(t, svc.Access(status))
	require.Eventually(t, func() bool {
		return readQuiet(out1) == "0" && readQuiet(out2) == "0"
	}, 2*time.Second, 10*time.Millisecond)

	// A target created after startup is written on the next dispatch.
	out3 := filepath.Join(dir, "out3.txt")
	writeStatus(t, out3, "")
	writeStatus(t, status, "on")
	pastDebounce()
	require.NoError(t, svc.Access(status))
	require.Eventually(t, func() bool {
		return readQuiet(out3) == "1"
	}, 2*time.Second, 10*time.Millisecond, "glob must be re-expanded per dispatch")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not shut down")
	}
}

func TestEngine_UnknownWatchIgnored(t *testing.T) {
	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	out := filepath.Join(dir, "out.txt")
	writeStatus(t, status, "on")
	writeStatus(t, out, "")

	svc := watch.NewChannelService(8)
	defer svc.Close()

	engine := NewEngine(newTestDocument(status, out), svc)

	ctx, cancel := context.WithCancel(quietContext())
	done := startEngine(ctx, engine)

	require.Eventually(t, func() bool { return readQuiet(out) == "1" }, 2*time.Second, 10*time.Millisecond)

	// An event for a watch the registry never saw is dropped silently.
	svc.Emit(watch.Event{ID: 4242})

	// The loop is still alive and relaying.
	writeStatus(t, status, "off")
	pastDebounce()
	require.NoError(t, svc.Access(status))
	require.Eventually(t, func() bool { return readQuiet(out) == "0" }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestEngine_PollErrorDoesNotStopLoop(t *testing.T) {
	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	out := filepath.Join(dir, "out.txt")
	writeStatus(t, status, "on")
	writeStatus(t, out, "")

	svc := watch.NewChannelService(8)
	defer svc.Close()

	engine := NewEngine(newTestDocument(status, out), svc)

	ctx, cancel := context.WithCancel(quietContext())
	done := startEngine(ctx, engine)

	require.Eventually(t, func() bool { return readQuiet(out) == "1" }, 2*time.Second, 10*time.Millisecond)

	// The trigger file vanishes: the poll for this event fails, the loop
	// survives.
	require.NoError(t, os.Remove(status))
	pastDebounce()
	require.NoError(t, svc.Access(status))
	time.Sleep(100 * time.Millisecond)

	// The file returns with a different value: relaying resumes.
	writeStatus(t, status, "off")
	require.NoError(t, svc.Access(status))
	require.Eventually(t, func() bool { return readQuiet(out) == "0" }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

// ---------------------------------------------------------------------------
// Fatal paths
// ---------------------------------------------------------------------------

func TestEngine_InitialPollFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	// No status file on disk.
	engine := NewEngine(newTestDocument(filepath.Join(dir, "status"), filepath.Join(dir, "out.txt")), watch.NewChannelService(1))

	err := engine.Run(quietContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial evaluation")
}

func TestEngine_InstallFailureIsFatal(t *testing.T) {
	svc := watch.NewChannelService(1)
	require.NoError(t, svc.Close())

	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	writeStatus(t, status, "on")

	engine := NewEngine(newTestDocument(status, filepath.Join(dir, "out.txt")), svc)

	err := engine.Run(quietContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `installing watch for trigger "t1"`)
}

func TestEngine_ServiceErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	writeStatus(t, status, "on")

	svc := watch.NewChannelService(8)
	defer svc.Close()

	engine := NewEngine(newTestDocument(status, filepath.Join(dir, "out.txt")), svc)

	done := startEngine(quietContext(), engine)

	svc.Fail(errors.New("queue overflow"))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "watch service failed")
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on service error")
	}
}

func TestEngine_EventStreamEndIsFatal(t *testing.T) {
	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	writeStatus(t, status, "on")

	svc := watch.NewChannelService(8)

	engine := NewEngine(newTestDocument(status, filepath.Join(dir, "out.txt")), svc)

	done := startEngine(quietContext(), engine)

	// Give install and the initial pass a moment, then end the stream.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, svc.Close())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "event stream ended")
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on closed event stream")
	}
}

// ---------------------------------------------------------------------------
// Action isolation
// ---------------------------------------------------------------------------

func TestEngine_ActionIsolation(t *testing.T) {
	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	out := filepath.Join(dir, "out.txt")
	writeStatus(t, status, "on")
	writeStatus(t, out, "")

	// The first action has no mapping for "active"; the second must still
	// run.
	doc := &Document{
		Triggers: []Trigger{NewSimpleFileTrigger("t1", status, statusMap)},
		Actions: []Action{
			NewSimpleFileAction("t1", filepath.Join(dir, "never*.txt"), map[string]string{"other": "x"}),
			NewSimpleFileAction("t1", out, outputMap),
		},
	}

	svc := watch.NewChannelService(8)
	defer svc.Close()

	ctx, cancel := context.WithCancel(quietContext())
	done := startEngine(ctx, NewEngine(doc, svc))

	require.Eventually(t, func() bool { return readQuiet(out) == "1" }, 2*time.Second, 10*time.Millisecond,
		"second action must run although the first had no mapping")

	cancel()
	assert.NoError(t, <-done)
}

// ---------------------------------------------------------------------------
// Document change notice
// ---------------------------------------------------------------------------

func TestEngine_DocumentNoticeDoesNotDisturbRelaying(t *testing.T) {
	dir := t.TempDir()
	status := filepath.Join(dir, "status")
	out := filepath.Join(dir, "out.txt")
	docFile := filepath.Join(dir, "relay.toml")
	writeStatus(t, status, "on")
	writeStatus(t, out, "")
	writeStatus(t, docFile, "# original")

	svc := watch.NewChannelService(8)
	defer svc.Close()

	engine := NewEngine(newTestDocument(status, out), svc, WithDocumentNotice(docFile))

	ctx, cancel := context.WithCancel(quietContext())
	done := startEngine(ctx, engine)

	require.Eventually(t, func() bool { return readQuiet(out) == "1" }, 2*time.Second, 10*time.Millisecond)

	// Rewriting the document logs a notice; the running configuration is
	// unaffected.
	writeStatus(t, docFile, "# edited")

	writeStatus(t, status, "off")
	pastDebounce()
	require.NoError(t, svc.Access(status))
	require.Eventually(t, func() bool { return readQuiet(out) == "0" }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
