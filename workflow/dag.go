package workflow

import (
	"sort"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// DAG is an explicit declaration of tasks and their dependencies.
type DAG struct {
	ID            string
	Description   string
	Owner         string
	Tags          []string
	Schedule      string
	Catchup       bool
	MaxActiveRuns int

	// Retries と RetryDelay は AddTask 時に各タスクへコピーされる既定値
	Retries    int
	RetryDelay time.Duration

	tasks []*Task
	index map[string]*Task
	dups  []string
}

// NewDAG creates an empty DAG that allows one active run.
func NewDAG(id string) *DAG {
	return &DAG{
		ID:            id,
		MaxActiveRuns: 1,
		index:         make(map[string]*Task),
	}
}

// AddTask appends a task that inherits the DAG's retry defaults.
func (d *DAG) AddTask(id string, fn TaskFunc, opts ...TaskOption) *Task {
	t := &Task{
		ID:          id,
		TriggerRule: AllSuccess,
		Retries:     d.Retries,
		RetryDelay:  d.RetryDelay,
		Run:         fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	if _, exists := d.index[id]; exists {
		d.dups = append(d.dups, id)
		return t
	}
	d.tasks = append(d.tasks, t)
	d.index[id] = t
	return t
}

// Task returns the task registered under id.
func (d *DAG) Task(id string) (*Task, bool) {
	t, ok := d.index[id]
	return t, ok
}

// Tasks returns the tasks in declaration order.
func (d *DAG) Tasks() []*Task {
	return append([]*Task(nil), d.tasks...)
}

// Downstream returns the ids of tasks that list id as an upstream.
func (d *DAG) Downstream(id string) []string {
	var out []string
	for _, t := range d.tasks {
		for _, up := range t.Upstream {
			if up == id {
				out = append(out, t.ID)
				break
			}
		}
	}
	return out
}

// Validate checks ids, task bodies, upstream references and acyclicity.
func (d *DAG) Validate() error {
	if d.ID == "" {
		return errors.NewValidationError("dag.id", "must not be empty", d.ID)
	}
	if len(d.tasks) == 0 {
		return errors.NewValueError("DAG.Validate", "dag "+d.ID+" has no tasks")
	}
	if len(d.dups) > 0 {
		return errors.NewValidationError("task.id", "duplicate task id", d.dups[0])
	}
	if d.MaxActiveRuns < 1 {
		return errors.NewValidationError("max_active_runs", "must be at least 1", d.MaxActiveRuns)
	}
	for _, t := range d.tasks {
		if t.Run == nil {
			return errors.NewValidationError("task.run", "task "+t.ID+" has no body", nil)
		}
		if t.Retries < 0 {
			return errors.NewValidationError("task.retries", "must be >= 0", t.Retries)
		}
		if t.TriggerRule != AllSuccess && t.TriggerRule != AllDone {
			return errors.NewValidationError("task.trigger_rule", "unknown trigger rule", t.TriggerRule)
		}
		for _, up := range t.Upstream {
			if _, ok := d.index[up]; !ok {
				return errors.NewValidationError("task.upstream", "task "+t.ID+" depends on unknown task", up)
			}
		}
	}
	_, err := d.TopologicalOrder()
	return err
}

// TopologicalOrder returns task ids so that every task follows its upstreams.
// Ties keep declaration order.
func (d *DAG) TopologicalOrder() ([]string, error) {
	pos := make(map[string]int, len(d.tasks))
	indeg := make(map[string]int, len(d.tasks))
	for i, t := range d.tasks {
		pos[t.ID] = i
		// Downstream は上流1つにつき1回しか返さないので重複は数えない
		seen := make(map[string]struct{}, len(t.Upstream))
		for _, up := range t.Upstream {
			seen[up] = struct{}{}
		}
		indeg[t.ID] = len(seen)
	}

	var ready []string
	for _, t := range d.tasks {
		if indeg[t.ID] == 0 {
			ready = append(ready, t.ID)
		}
	}

	order := make([]string, 0, len(d.tasks))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return pos[ready[i]] < pos[ready[j]] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, down := range d.Downstream(id) {
			indeg[down]--
			if indeg[down] == 0 {
				ready = append(ready, down)
			}
		}
	}
	if len(order) != len(d.tasks) {
		return nil, errors.NewValueError("DAG.TopologicalOrder", "dag "+d.ID+" contains a cycle")
	}
	return order, nil
}
