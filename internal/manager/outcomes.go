package manager

import (
	"sync"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// outcomeLog is a fixed-size ring of recent task outcomes.
type outcomeLog struct {
	mu    sync.Mutex
	buf   []models.Outcome
	next  int
	count int
}

func newOutcomeLog(size int) *outcomeLog {
	return &outcomeLog{buf: make([]models.Outcome, size)}
}

func (l *outcomeLog) add(o models.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = o
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
}

func (l *outcomeLog) recent(n int) []models.Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]models.Outcome, n)
	start := (l.next - n + len(l.buf)) % len(l.buf)
	for i := 0; i < n; i++ {
		out[i] = l.buf[(start+i)%len(l.buf)]
	}
	return out
}
