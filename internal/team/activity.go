package team

import (
	"math"
	"os"
	"path/filepath"
	"time"
)

// ActivityStatus buckets a team by the age of its newest file.
type ActivityStatus string

const (
	StatusActive ActivityStatus = "active"
	StatusRecent ActivityStatus = "recent"
	StatusStale  ActivityStatus = "stale"
)

const (
	// ActiveThreshold is the age below which a team counts as active.
	ActiveThreshold = time.Hour
	// RecentThreshold is the age below which a team counts as recent.
	RecentThreshold = 24 * time.Hour
)

// rank orders statuses for display: active, recent, stale.
func (s ActivityStatus) rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusRecent:
		return 1
	default:
		return 2
	}
}

// Activity is derived on every request from file modification times.
type Activity struct {
	LastActivity    int64          `json:"lastActivity"`
	LastActivityISO *string        `json:"lastActivityISO"`
	AgeHours        float64        `json:"ageHours"`
	Status          ActivityStatus `json:"status"`
}

// Activity classifies a team from the newest JSON file under its teams
// and tasks directories.
func (r *Reader) Activity(name string, now time.Time) Activity {
	if !validName(name) {
		return Classify(time.Time{}, now)
	}
	latest := LatestModTime(filepath.Join(r.teamsDir, name))
	if t := LatestModTime(filepath.Join(r.tasksDir, name)); t.After(latest) {
		latest = t
	}
	return Classify(latest, now)
}

// LatestModTime returns the newest mtime of the *.json files in dir and in
// its immediate subdirectories. It does not descend further. The zero time
// is returned when nothing is found.
func LatestModTime(dir string) time.Time {
	var latest time.Time
	entries, err := os.ReadDir(dir)
	if err != nil {
		return latest
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if t := newestJSON(full); t.After(latest) {
				latest = t
			}
			continue
		}
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if t := modTime(full); t.After(latest) {
			latest = t
		}
	}
	return latest
}

func newestJSON(dir string) time.Time {
	var latest time.Time
	files, err := jsonFiles(dir)
	if err != nil {
		return latest
	}
	for _, f := range files {
		if t := modTime(filepath.Join(dir, f)); t.After(latest) {
			latest = t
		}
	}
	return latest
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Classify computes the activity snapshot for a team whose newest file was
// written at latest. A zero latest means no file was found.
func Classify(latest, now time.Time) Activity {
	var lastMs int64
	if !latest.IsZero() {
		lastMs = latest.UnixMilli()
	}

	ageMs := now.UnixMilli() - lastMs
	ageHours := float64(ageMs) / float64(time.Hour/time.Millisecond)

	a := Activity{
		LastActivity: lastMs,
		AgeHours:     math.Floor(ageHours*10+0.5) / 10,
	}
	if lastMs != 0 {
		iso := time.UnixMilli(lastMs).UTC().Format("2006-01-02T15:04:05.000Z")
		a.LastActivityISO = &iso
	}

	switch {
	case lastMs == 0:
		a.Status = StatusStale
	case ageHours < ActiveThreshold.Hours():
		a.Status = StatusActive
	case ageHours < RecentThreshold.Hours():
		a.Status = StatusRecent
	default:
		a.Status = StatusStale
	}
	return a
}
