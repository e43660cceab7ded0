package team

import (
	"encoding/json"
	"sort"
	"time"
)

// MemberSummary is the subset of a member shown in team listings.
type MemberSummary struct {
	Name      string          `json:"name"`
	AgentType string          `json:"agentType"`
	Model     string          `json:"model"`
	Color     *string         `json:"color"`
	JoinedAt  json.RawMessage `json:"joinedAt"`
}

// Summary is one entry of the team list.
type Summary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	MemberCount int             `json:"memberCount"`
	Members     []MemberSummary `json:"members"`
	Activity
}

// OverviewEntry is the per-team row of the cross-team overview.
type OverviewEntry struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	MemberCount     int    `json:"memberCount"`
	TaskCount       int    `json:"taskCount"`
	CompletedTasks  int    `json:"completedTasks"`
	InProgressTasks int    `json:"inProgressTasks"`
	PendingTasks    int    `json:"pendingTasks"`
	TotalMessages   int    `json:"totalMessages"`
	UnreadMessages  int    `json:"unreadMessages"`
}

// Aggregator composes Reader output into the views served to observers.
// Nothing is cached: each call re-reads disk.
type Aggregator struct {
	reader *Reader
	now    func() time.Time
}

// NewAggregator creates an Aggregator over r.
func NewAggregator(r *Reader) *Aggregator {
	return &Aggregator{reader: r, now: time.Now}
}

// Reader returns the underlying reader.
func (a *Aggregator) Reader() *Reader { return a.reader }

// Teams returns one summary per team, active teams first and the most
// recently touched first within a status.
func (a *Aggregator) Teams() []Summary {
	now := a.now()
	names := a.reader.TeamNames()
	summaries := make([]Summary, 0, len(names))

	for _, name := range names {
		s := Summary{
			Name:     name,
			Members:  []MemberSummary{},
			Activity: a.reader.Activity(name, now),
		}
		if cfg, ok := a.reader.TeamConfig(name); ok {
			s.Description = cfg.Description
			s.CreatedAt = nullIfEmpty(cfg.CreatedAt)
			s.MemberCount = len(cfg.Members)
			for _, m := range cfg.Members {
				s.Members = append(s.Members, summarizeMember(m))
			}
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		ri, rj := summaries[i].Status.rank(), summaries[j].Status.rank()
		if ri != rj {
			return ri < rj
		}
		return summaries[i].LastActivity > summaries[j].LastActivity
	})
	return summaries
}

// Overview returns task and message counters for every team.
func (a *Aggregator) Overview() []OverviewEntry {
	names := a.reader.TeamNames()
	entries := make([]OverviewEntry, 0, len(names))

	for _, name := range names {
		e := OverviewEntry{Name: name}
		if cfg, ok := a.reader.TeamConfig(name); ok {
			e.Description = cfg.Description
			e.MemberCount = len(cfg.Members)
		}

		tasks := a.reader.Tasks(name)
		e.TaskCount = len(tasks)
		for _, t := range tasks {
			switch t.Status() {
			case TaskCompleted:
				e.CompletedTasks++
			case TaskInProgress:
				e.InProgressTasks++
			case TaskPending:
				e.PendingTasks++
			}
		}

		for _, messages := range a.reader.Inboxes(name) {
			e.TotalMessages += len(messages)
			for _, m := range messages {
				if !m.Read() {
					e.UnreadMessages++
				}
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// Team returns the full config of one team.
func (a *Aggregator) Team(name string) (*TeamConfig, bool) {
	return a.reader.TeamConfig(name)
}

// Inboxes returns every member's inbox for one team.
func (a *Aggregator) Inboxes(name string) map[string][]InboxMessage {
	return a.reader.Inboxes(name)
}

// Tasks returns the ordered task list of one team.
func (a *Aggregator) Tasks(name string) []Task {
	return a.reader.Tasks(name)
}

func summarizeMember(m Member) MemberSummary {
	ms := MemberSummary{
		Name:      m.Name,
		AgentType: m.AgentType,
		Model:     m.Model,
		JoinedAt:  nullIfEmpty(m.JoinedAt),
	}
	if m.Color != "" {
		color := m.Color
		ms.Color = &color
	}
	return ms
}

var jsonNull = json.RawMessage("null")

func nullIfEmpty(v json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return jsonNull
	}
	return v
}
