package session

import (
	"sync"

	"github.com/digkill/productgenius/internal/models"
)

// History is the append-only generation log of one session, most recent first.
type History struct {
	mu      sync.RWMutex
	results []models.GenerationResult
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Prepend(result models.GenerationResult) {
	h.mu.Lock()
	h.results = append([]models.GenerationResult{result}, h.results...)
	h.mu.Unlock()
}

// List returns a snapshot of the log, newest first.
func (h *History) List() []models.GenerationResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.GenerationResult, len(h.results))
	copy(out, h.results)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.results)
}

// Histories hands out one History per session key.
type Histories struct {
	mu   sync.Mutex
	logs map[string]*History
}

func NewHistories() *Histories {
	return &Histories{logs: make(map[string]*History)}
}

func (h *Histories) For(key string) *History {
	h.mu.Lock()
	defer h.mu.Unlock()
	log, ok := h.logs[key]
	if !ok {
		log = NewHistory()
		h.logs[key] = log
	}
	return log
}

// Drop forgets the log of a session, e.g. on logout.
func (h *Histories) Drop(key string) {
	h.mu.Lock()
	delete(h.logs, key)
	h.mu.Unlock()
}
