package team

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	configFileName = "config.json"
	inboxDirName   = "inboxes"
)

// Reader reads agent team data from the Claude Code teams and tasks
// directories. It holds no state besides the two roots: every call goes
// back to disk.
type Reader struct {
	teamsDir string
	tasksDir string
}

// NewDefaultReader creates a Reader using the default Claude data directories.
func NewDefaultReader() *Reader {
	home, _ := os.UserHomeDir()
	return NewReader(
		filepath.Join(home, ".claude", "teams"),
		filepath.Join(home, ".claude", "tasks"),
	)
}

// NewReader creates a Reader with custom directories.
func NewReader(teamsDir, tasksDir string) *Reader {
	return &Reader{teamsDir: teamsDir, tasksDir: tasksDir}
}

// TeamsDir returns the teams root.
func (r *Reader) TeamsDir() string { return r.teamsDir }

// TasksDir returns the tasks root.
func (r *Reader) TasksDir() string { return r.tasksDir }

// TeamNames lists the directories directly under the teams root.
// A missing or unreadable root yields an empty list.
func (r *Reader) TeamNames() []string {
	entries, err := os.ReadDir(r.teamsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("teams dir read error", "dir", r.teamsDir, "error", err)
		}
		return []string{}
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names
}

// TeamConfig reads <teams>/<name>/config.json. The bool is false when the
// file is missing or does not parse.
func (r *Reader) TeamConfig(name string) (*TeamConfig, bool) {
	if !validName(name) {
		return nil, false
	}

	path := filepath.Join(r.teamsDir, name, configFileName)
	data, err := readJSONFile(path)
	if err != nil {
		slog.Debug("team config unavailable", "team", name, "error", err)
		return nil, false
	}

	if string(bytes.TrimSpace(data)) == "null" {
		return nil, false
	}

	var cfg TeamConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Debug("team config parse error", "team", name, "error", err)
		return nil, false
	}
	cfg.Raw = data
	return &cfg, true
}

// Tasks reads every <tasks>/<name>/*.json file. Files that fail to parse
// and tasks without an id are skipped individually. The result is ordered
// by numeric id.
func (r *Reader) Tasks(name string) []Task {
	tasks := []Task{}
	if !validName(name) {
		return tasks
	}

	dir := filepath.Join(r.tasksDir, name)
	files, err := jsonFiles(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("tasks dir read error", "team", name, "error", err)
		}
		return tasks
	}

	for _, file := range files {
		data, err := readJSONFile(filepath.Join(dir, file))
		if err != nil {
			slog.Debug("task file read error", "team", name, "file", file, "error", err)
			continue
		}

		var t Task
		if err := json.Unmarshal(data, &t); err != nil || t == nil {
			slog.Debug("task file parse error", "team", name, "file", file, "error", err)
			continue
		}
		if t.ID() == "" {
			continue
		}
		tasks = append(tasks, t)
	}

	sortTasks(tasks)
	return tasks
}

// Inboxes reads <teams>/<name>/inboxes/<member>.json for every member.
// A file that is not a JSON array excludes that member only.
func (r *Reader) Inboxes(name string) map[string][]InboxMessage {
	inboxes := map[string][]InboxMessage{}
	if !validName(name) {
		return inboxes
	}

	dir := filepath.Join(r.teamsDir, name, inboxDirName)
	files, err := jsonFiles(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("inbox dir read error", "team", name, "error", err)
		}
		return inboxes
	}

	for _, file := range files {
		member := strings.TrimSuffix(file, ".json")
		data, err := readJSONFile(filepath.Join(dir, file))
		if err != nil {
			slog.Debug("inbox read error", "team", name, "member", member, "error", err)
			continue
		}

		var messages []InboxMessage
		if err := json.Unmarshal(data, &messages); err != nil || messages == nil {
			slog.Debug("inbox parse error", "team", name, "member", member, "error", err)
			continue
		}
		inboxes[member] = messages
	}
	return inboxes
}

// sortTasks orders tasks by numeric id ascending. Ids that are not numbers
// follow the numeric ones, in string order.
func sortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, aok := tasks[i].numericID()
		b, bok := tasks[j].numericID()
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return tasks[i].ID() < tasks[j].ID()
		}
	})
}

// jsonFiles lists the names of regular *.json files directly in dir.
func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// readJSONFile returns the file content if it is syntactically valid JSON.
func readJSONFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parse %s: invalid JSON", filepath.Base(path))
	}
	return data, nil
}

// validName rejects names that would resolve outside the team roots.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
