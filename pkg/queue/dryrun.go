package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type dryRun struct {
	*config

	mu   sync.Mutex
	next int
}

// NewDryRun returns a queue which logs what it would submit and
// hands out synthetic job ids ("dryrun-1", "dryrun-2", ...).
func NewDryRun(opts ...Option) Queue {
	return &dryRun{config: newConfig(opts)}
}

func (*dryRun) Directive() string {
	return "#SBATCH"
}

func (q *dryRun) Submit(ctx context.Context, script string, dep *Dependency) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	q.next += 1
	h := Handle(fmt.Sprintf("dryrun-%d", q.next))
	q.mu.Unlock()

	args := []string{}
	if dep != nil {
		args = append(args, "--dependency="+dep.String())
	}
	args = append(args, script)
	q.logger.Printf("[dry-run] sbatch %s -> %s", strings.Join(args, " "), h)
	return h, nil
}
