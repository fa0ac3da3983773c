package coordinator

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/isrc101/crew/pkg/models"
)

// scratchpad sizing limits. Oversized values are truncated on write and the
// oldest entries are evicted past the entry cap.
const (
	maxScratchEntries  = 256
	maxScratchValueLen = 4000
)

// ScratchEntry is a single note in the shared scratchpad.
type ScratchEntry struct {
	// Key identifies the note; writes to an existing key overwrite it.
	Key string
	// Value is the note body.
	Value string
	// Author is the worker instance that wrote the note.
	Author string
	// TaskID links the note to the task it was written during.
	TaskID string
	// Tags classify the note for relevance queries.
	Tags []string
	// Timestamp is when the note was last written.
	Timestamp time.Time
}

// Scratchpad is a shared key-value store for inter-agent knowledge sharing.
// Workers publish notes via SCRATCHPAD_WRITE messages; the coordinator
// applies them here and injects relevant notes into dispatched instructions.
type Scratchpad struct {
	entries map[string]ScratchEntry
	mu      sync.Mutex
}

// NewScratchpad creates an empty Scratchpad.
func NewScratchpad() *Scratchpad {
	return &Scratchpad{entries: make(map[string]ScratchEntry)}
}

// Write adds or overwrites a note. Values longer than the per-entry cap are
// truncated; past the entry cap the oldest note is evicted.
func (s *Scratchpad) Write(key, value, author, taskID string, tags []string) {
	if len(value) > maxScratchValueLen {
		value = value[:maxScratchValueLen]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= maxScratchEntries {
		s.evictOldestLocked()
	}
	s.entries[key] = ScratchEntry{
		Key:       key,
		Value:     value,
		Author:    author,
		TaskID:    taskID,
		Tags:      tags,
		Timestamp: time.Now(),
	}
}

func (s *Scratchpad) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range s.entries {
		if oldestKey == "" || entry.Timestamp.Before(oldest) {
			oldestKey = key
			oldest = entry.Timestamp
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

// Read returns a single note by key.
func (s *Scratchpad) Read(key string) (ScratchEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Len returns the number of stored notes.
func (s *Scratchpad) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// QueryByTags finds notes matching any of the given tags, most recent first,
// capped at limit.
func (s *Scratchpad) QueryByTags(tags []string, limit int) []ScratchEntry {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}

	s.mu.Lock()
	var matches []ScratchEntry
	for _, entry := range s.entries {
		for _, t := range entry.Tags {
			if want[t] {
				matches = append(matches, entry)
				break
			}
		}
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// RelevantForTask builds a shared-notes block for a task from notes written
// during its context sources plus notes tagged with its role, oldest first,
// capped at maxChars. Returns "" when nothing applies.
func (s *Scratchpad) RelevantForTask(task *models.CrewTask, maxChars int) string {
	sourceIDs := task.ContextFrom
	if len(sourceIDs) == 0 {
		sourceIDs = task.DependsOn
	}
	fromDeps := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		fromDeps[id] = true
	}

	s.mu.Lock()
	var relevant []ScratchEntry
	seen := make(map[string]bool)
	for _, entry := range s.entries {
		if fromDeps[entry.TaskID] && !seen[entry.Key] {
			relevant = append(relevant, entry)
			seen[entry.Key] = true
		}
	}
	for _, entry := range s.entries {
		if seen[entry.Key] {
			continue
		}
		for _, t := range entry.Tags {
			if t == task.AssignedRole {
				relevant = append(relevant, entry)
				seen[entry.Key] = true
				break
			}
		}
	}
	s.mu.Unlock()

	if len(relevant) == 0 {
		return ""
	}

	sort.Slice(relevant, func(i, j int) bool {
		return relevant[i].Timestamp.Before(relevant[j].Timestamp)
	})

	var parts []string
	total := 0
	for _, entry := range relevant {
		chunk := fmt.Sprintf("[%s] (by %s): %s", entry.Key, entry.Author, entry.Value)
		if total+len(chunk) > maxChars {
			break
		}
		parts = append(parts, chunk)
		total += len(chunk)
	}
	if len(parts) == 0 {
		return ""
	}
	return "## Shared Notes\n" + strings.Join(parts, "\n")
}
