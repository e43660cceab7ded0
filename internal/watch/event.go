package watch

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind is the normalized filesystem event kind.
type Kind string

const (
	KindAdd    Kind = "add"
	KindChange Kind = "change"
	KindRemove Kind = "remove"
)

// Area says which watched root a path belongs to.
type Area string

const (
	AreaTeams Area = "teams"
	AreaTasks Area = "tasks"
)

// ChangeEvent is a normalized change under one of the watched roots.
type ChangeEvent struct {
	Kind Kind
	Area Area
	// Team is the first path segment below the root, or "" for a file
	// sitting directly in the root.
	Team string
	// File is the path relative to the area root.
	File string
	Time time.Time
}

// classify maps an absolute path to its area, team and relative file.
func classify(teamsDir, tasksDir, path string) (Area, string, string) {
	area, root := AreaTasks, tasksDir
	if within(teamsDir, path) {
		area, root = AreaTeams, teamsDir
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	var team string
	if i := strings.IndexRune(rel, filepath.Separator); i > 0 {
		team = rel[:i]
	}
	return area, team, rel
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
