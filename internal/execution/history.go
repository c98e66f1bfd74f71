package execution

import (
	"sync"

	"github.com/ggonzalez94/satsuma/internal/logging"
	"go.uber.org/zap"
)

const DefaultHistorySize = 10

// OutcomeLog persists every outcome. *Store implements it.
type OutcomeLog interface {
	Save(out Outcome) error
}

// History keeps the most recent outcomes in memory for display and forwards
// every outcome to an optional unbounded log. It is advisory; the run-state
// counters are the durable record.
type History struct {
	mu     sync.Mutex
	size   int
	recent []Outcome
	log    OutcomeLog
	logger *zap.Logger
}

func NewHistory(size int, log OutcomeLog, logger *zap.Logger) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, log: log, logger: logging.OrNop(logger)}
}

func (h *History) Append(out Outcome) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.recent = append(h.recent, out)
	if len(h.recent) > h.size {
		trimmed := make([]Outcome, h.size)
		copy(trimmed, h.recent[len(h.recent)-h.size:])
		h.recent = trimmed
	}
	h.mu.Unlock()

	if h.log != nil {
		if err := h.log.Save(out); err != nil {
			h.logger.Warn("persist outcome failed", zap.String("id", out.ID), zap.Error(err))
		}
	}
}

// Recent returns the last n outcomes in append order.
func (h *History) Recent(n int) []Outcome {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 || n > len(h.recent) {
		n = len(h.recent)
	}
	out := make([]Outcome, n)
	copy(out, h.recent[len(h.recent)-n:])
	return out
}

func (h *History) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.recent)
}
