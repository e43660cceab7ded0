package team

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Member represents a single member of an agent team.
type Member struct {
	Name      string          `json:"name"`
	AgentID   string          `json:"agentId,omitempty"`
	AgentType string          `json:"agentType"`
	Model     string          `json:"model"`
	Color     string          `json:"color,omitempty"`
	JoinedAt  json.RawMessage `json:"joinedAt,omitempty"`
}

// TeamConfig is the on-disk structure of a team's config.json.
// Raw holds the file exactly as read; marshalling a TeamConfig returns it
// unchanged so fields this package does not model survive.
type TeamConfig struct {
	Description string          `json:"description"`
	CreatedAt   json.RawMessage `json:"createdAt,omitempty"`
	Members     []Member        `json:"members"`

	Raw json.RawMessage `json:"-"`
}

// MarshalJSON returns the file content as read when it is known.
func (c TeamConfig) MarshalJSON() ([]byte, error) {
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	type plain TeamConfig
	return json.Marshal(plain(c))
}

// TaskState represents the status of a task. Values other than the three
// below are legal and kept verbatim.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskCompleted  TaskState = "completed"
)

// Task is a single task file. Every field is preserved; only id and status
// are interpreted.
type Task map[string]any

// ID returns the task id rendered as a string, or "" if it is falsy.
func (t Task) ID() string {
	switch v := t["id"].(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
	}
	return ""
}

// Status returns the task status, or "" if absent or not a string.
func (t Task) Status() TaskState {
	s, _ := t["status"].(string)
	return TaskState(s)
}

// numericID parses the id the way a dashboard sorts it. ok is false for
// ids that are not numbers.
func (t Task) numericID() (float64, bool) {
	id := strings.TrimSpace(t.ID())
	if id == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(id, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// InboxMessage is one entry of a member's inbox file.
type InboxMessage map[string]any

// Read reports whether the message has been read. Absent, null, false,
// zero and empty-string values all count as unread.
func (m InboxMessage) Read() bool {
	return truthy(m["read"])
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
