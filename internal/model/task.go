package model

import "time"

// TaskState is the internal pipeline state machine. Transitions are
// monotonic: a task only ever moves to a state with a higher rank, with
// TaskFailed reachable from any non-terminal state.
type TaskState string

const (
	TaskPending    TaskState = "PENDING"
	TaskParsing    TaskState = "PARSING"
	TaskChunking   TaskState = "CHUNKING"
	TaskEmbedding  TaskState = "EMBEDDING"
	TaskExtracting TaskState = "EXTRACTING"
	TaskStoring    TaskState = "STORING"
	TaskCompleted  TaskState = "COMPLETED"
	TaskFailed     TaskState = "FAILED"
	TaskRevoked    TaskState = "REVOKED"
)

var stateRank = map[TaskState]int{
	TaskPending:    0,
	TaskParsing:    1,
	TaskChunking:   2,
	TaskEmbedding:  3,
	TaskExtracting: 4,
	TaskStoring:    5,
	TaskCompleted:  6,
	TaskFailed:     6,
	TaskRevoked:    6,
}

// Rank orders states for monotonicity checks. Terminal states share the top
// rank so no transition out of them is ever legal.
func (s TaskState) Rank() int { return stateRank[s] }

func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskRevoked
}

// CanTransition reports whether moving from s to next preserves
// forward-only progress.
func (s TaskState) CanTransition(next TaskState) bool {
	if s.Terminal() {
		return false
	}
	if next == TaskFailed || next == TaskRevoked {
		return true
	}
	return next.Rank() > s.Rank()
}

// External returns the Celery-style state surfaced by the status endpoint.
func (s TaskState) External() string {
	switch s {
	case TaskPending:
		return "PENDING"
	case TaskCompleted:
		return "SUCCESS"
	case TaskFailed:
		return "FAILURE"
	case TaskRevoked:
		return "REVOKED"
	default:
		return "STARTED"
	}
}

// ExternalState is the Celery-style state for a task, surfacing RETRY while
// a stage is backing off between attempts.
func (t *Task) ExternalState() string {
	if t.Retrying && !t.State.Terminal() {
		return "RETRY"
	}
	return t.State.External()
}

// TaskClass selects the retry budget and time limits for a task.
type TaskClass string

const (
	ClassDocument TaskClass = "document"
	ClassBatch    TaskClass = "batch"
)

// Progress is the client-visible progress record, persisted on every state
// transition so polling observes forward-only progress.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// TaskResult is the payload attached to a completed ingestion task.
type TaskResult struct {
	DocumentID    string `json:"document_id"`
	Chunks        int    `json:"chunks"`
	ParentChunks  int    `json:"parent_chunks"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships"`
}

// Task is a unit of pipeline work. Mutated exclusively by the orchestrator;
// expires from the status store after the retention window.
type Task struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"document_id"`
	ModuleID    string      `json:"module_id"`
	RequesterID string      `json:"requester_id"`
	Class       TaskClass   `json:"class"`
	State       TaskState   `json:"state"`
	Progress    Progress    `json:"progress"`
	Result      *TaskResult `json:"result,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	ErrorMsg    string      `json:"error,omitempty"`
	Attempts    int         `json:"attempts"`
	Retrying    bool        `json:"retrying,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
