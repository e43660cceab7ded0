package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	testStability = 80 * time.Millisecond
	testPoll      = 10 * time.Millisecond
	// quiet is how long a test waits to be sure nothing else arrives.
	quiet = 400 * time.Millisecond
)

type fixture struct {
	teamsDir string
	tasksDir string
	events   chan ChangeEvent
}

func startWatcher(t *testing.T, setup func(teamsDir, tasksDir string), opts ...Option) *fixture {
	t.Helper()
	tmp := t.TempDir()
	f := &fixture{
		teamsDir: filepath.Join(tmp, "teams"),
		tasksDir: filepath.Join(tmp, "tasks"),
		events:   make(chan ChangeEvent, 64),
	}
	for _, d := range []string{f.teamsDir, f.tasksDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if setup != nil {
		setup(f.teamsDir, f.tasksDir)
	}

	opts = append([]Option{WithStabilityThreshold(testStability), WithPollInterval(testPoll)}, opts...)
	w, err := New(f.teamsDir, f.tasksDir, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(ev ChangeEvent) { f.events <- ev })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return f
}

func (f *fixture) next(t *testing.T) ChangeEvent {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func (f *fixture) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(quiet):
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNew_NoRoots(t *testing.T) {
	tmp := t.TempDir()
	_, err := New(filepath.Join(tmp, "teams"), filepath.Join(tmp, "tasks"))
	if !errors.Is(err, ErrNoWatchRoots) {
		t.Fatalf("err = %v, want ErrNoWatchRoots", err)
	}
}

func TestNew_SkipsMissingRoot(t *testing.T) {
	tmp := t.TempDir()
	tasksDir := filepath.Join(tmp, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := New(filepath.Join(tmp, "teams"), tasksDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	roots := w.Roots()
	if len(roots) != 1 || roots[0] != tasksDir {
		t.Errorf("roots = %v, want [%s]", roots, tasksDir)
	}
}

func TestWatcher_IgnoresExistingFiles(t *testing.T) {
	f := startWatcher(t, func(teamsDir, tasksDir string) {
		mustWrite(t, filepath.Join(teamsDir, "red", "config.json"), "{}")
		mustWrite(t, filepath.Join(tasksDir, "red", "1.json"), `{"id":"1"}`)
	})
	f.expectNone(t)
}

func TestWatcher_AddInTasks(t *testing.T) {
	f := startWatcher(t, func(_, tasksDir string) {
		if err := os.MkdirAll(filepath.Join(tasksDir, "red"), 0o755); err != nil {
			t.Fatal(err)
		}
	})

	mustWrite(t, filepath.Join(f.tasksDir, "red", "3.json"), `{"id":"3","status":"completed"}`)

	ev := f.next(t)
	if ev.Kind != KindAdd || ev.Area != AreaTasks || ev.Team != "red" || ev.File != filepath.Join("red", "3.json") {
		t.Errorf("event = %+v", ev)
	}
	f.expectNone(t)
}

func TestWatcher_DebouncesRapidWrites(t *testing.T) {
	path := ""
	f := startWatcher(t, func(teamsDir, _ string) {
		path = filepath.Join(teamsDir, "red", "config.json")
		mustWrite(t, path, `{}`)
	})

	for i, content := range []string{`{"a":1}`, `{"a":12}`, `{"a":123}`} {
		if i > 0 {
			time.Sleep(testStability / 4)
		}
		mustWrite(t, path, content)
	}

	ev := f.next(t)
	if ev.Kind != KindChange || ev.Area != AreaTeams || ev.Team != "red" {
		t.Errorf("event = %+v", ev)
	}
	f.expectNone(t)
}

func TestWatcher_NewTeamWithInbox(t *testing.T) {
	f := startWatcher(t, nil)

	inbox := filepath.Join(f.teamsDir, "blue", "inboxes", "lead.json")
	mustWrite(t, inbox, `[]`)

	ev := f.next(t)
	if ev.Kind != KindAdd || ev.Area != AreaTeams || ev.Team != "blue" {
		t.Errorf("event = %+v", ev)
	}
	if ev.File != filepath.Join("blue", "inboxes", "lead.json") {
		t.Errorf("file = %q", ev.File)
	}
	f.expectNone(t)

	// The new directories are watched from now on.
	mustWrite(t, inbox, `[{"text":"hi"}]`)
	ev = f.next(t)
	if ev.Kind != KindChange || ev.File != filepath.Join("blue", "inboxes", "lead.json") {
		t.Errorf("event = %+v", ev)
	}
}

func TestWatcher_Remove(t *testing.T) {
	path := ""
	f := startWatcher(t, func(_, tasksDir string) {
		path = filepath.Join(tasksDir, "red", "1.json")
		mustWrite(t, path, `{"id":"1"}`)
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	ev := f.next(t)
	if ev.Kind != KindRemove || ev.Area != AreaTasks || ev.Team != "red" {
		t.Errorf("event = %+v", ev)
	}
}

func TestWatcher_FileAtRootHasNoTeam(t *testing.T) {
	f := startWatcher(t, nil)

	mustWrite(t, filepath.Join(f.teamsDir, "index.json"), `{}`)

	ev := f.next(t)
	if ev.Team != "" || ev.File != "index.json" || ev.Area != AreaTeams {
		t.Errorf("event = %+v", ev)
	}
}

func TestWatcher_DepthLimit(t *testing.T) {
	f := startWatcher(t, func(teamsDir, _ string) {
		if err := os.MkdirAll(filepath.Join(teamsDir, "red", "deep"), 0o755); err != nil {
			t.Fatal(err)
		}
	}, WithDepth(1))

	mustWrite(t, filepath.Join(f.teamsDir, "red", "deep", "x.json"), `{}`)
	f.expectNone(t)

	mustWrite(t, filepath.Join(f.teamsDir, "red", "y.json"), `{}`)
	ev := f.next(t)
	if ev.File != filepath.Join("red", "y.json") {
		t.Errorf("event = %+v", ev)
	}
}

func TestClassify(t *testing.T) {
	teams := filepath.FromSlash("/home/u/.claude/teams")
	tasks := filepath.FromSlash("/home/u/.claude/tasks")

	tests := []struct {
		path     string
		wantArea Area
		wantTeam string
		wantFile string
	}{
		{"/home/u/.claude/teams/red/config.json", AreaTeams, "red", "red/config.json"},
		{"/home/u/.claude/teams/red/inboxes/lead.json", AreaTeams, "red", "red/inboxes/lead.json"},
		{"/home/u/.claude/tasks/red/1.json", AreaTasks, "red", "red/1.json"},
		{"/home/u/.claude/tasks/loose.json", AreaTasks, "", "loose.json"},
		// A sibling sharing the string prefix is not under the teams root.
		{"/home/u/.claude/teams2/red/x.json", AreaTasks, "..", "../teams2/red/x.json"},
	}
	for _, tt := range tests {
		area, team, file := classify(teams, tasks, filepath.FromSlash(tt.path))
		if area != tt.wantArea || team != tt.wantTeam || file != filepath.FromSlash(tt.wantFile) {
			t.Errorf("classify(%s) = (%s, %q, %q), want (%s, %q, %q)",
				tt.path, area, team, file, tt.wantArea, tt.wantTeam, tt.wantFile)
		}
	}
}

func TestNew_ClampsNonPositiveSettings(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, "", WithDepth(0), WithStabilityThreshold(-time.Second), WithPollInterval(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if w.depth != DefaultDepth || w.stability != DefaultStabilityThreshold || w.poll != DefaultPollInterval {
		t.Fatalf("settings = depth %d stability %v poll %v, want defaults", w.depth, w.stability, w.poll)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(ChangeEvent) {})
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRemove_FileWhereDirectoryWas(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	clock := time.Now()
	w.now = func() time.Time { return clock }

	var got []ChangeEvent
	emit := func(ev ChangeEvent) { got = append(got, ev) }

	// The directory's own remove arrived but its parent's never did.
	path := filepath.Join(root, "red")
	w.gone[path] = true

	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Create}, emit)
	clock = clock.Add(time.Second)
	w.flush(emit)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Remove}, emit)

	if len(got) != 2 || got[0].Kind != KindAdd || got[1].Kind != KindRemove {
		t.Fatalf("events = %+v, want add then remove", got)
	}
}
