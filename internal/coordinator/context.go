package coordinator

import (
	"fmt"
	"strings"
	"sync"
)

// CrewContext accumulates accepted task outputs during a run, keyed by task
// ID, for the final synthesis step.
type CrewContext struct {
	results map[string]string
	order   []string
	mu      sync.Mutex
}

// NewCrewContext creates an empty CrewContext.
func NewCrewContext() *CrewContext {
	return &CrewContext{results: make(map[string]string)}
}

// AddResult records an accepted output. Re-adding a task ID overwrites the
// stored output but keeps its position.
func (c *CrewContext) AddResult(taskID, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.results[taskID]; !exists {
		c.order = append(c.order, taskID)
	}
	c.results[taskID] = output
}

// ContextFor builds a context block from the stored outputs of taskIDs, in
// the given order, skipping unknown IDs.
func (c *CrewContext) ContextFor(taskIDs []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var parts []string
	for _, id := range taskIDs {
		if output, ok := c.results[id]; ok {
			parts = append(parts, fmt.Sprintf("--- Result from task '%s' ---\n%s", id, output))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Len returns the number of accumulated results.
func (c *CrewContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}
