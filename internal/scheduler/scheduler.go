// Package scheduler runs deferred jobs keyed by (kind, entity id). Scheduling
// the same key twice replaces the due time; execution is at least once.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HandlerFunc processes one due job. A returned error leaves the job pending
// so that it is attempted again.
type HandlerFunc = func(ctx context.Context, id int) error

// Scheduler accepts deferred jobs and dispatches them to registered handlers.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, id int, runAt time.Time) error
	Cancel(ctx context.Context, kind string, id int) error
	Handle(kind string, fn HandlerFunc)
	Run(ctx context.Context) error
}

func member(kind string, id int) string {
	return kind + "|" + strconv.Itoa(id)
}

func parseMember(m string) (string, int, error) {
	idx := strings.LastIndex(m, "|")
	if idx <= 0 {
		return "", 0, fmt.Errorf("malformed job %q", m)
	}
	id, err := strconv.Atoi(m[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed job %q: %w", m, err)
	}
	return m[:idx], id, nil
}
