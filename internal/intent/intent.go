package intent

// Kind is the closed set of recognized intents. Anything the classifier
// returns outside this set is coerced to Unclear before it can reach
// downstream dispatch.
type Kind string

const (
	CreateTask    Kind = "CREATE_TASK"
	ListTasks     Kind = "LIST_TASKS"
	UpdateTask    Kind = "UPDATE_TASK"
	CompleteTask  Kind = "COMPLETE_TASK"
	DeleteTask    Kind = "DELETE_TASK"
	SearchTasks   Kind = "SEARCH_TASKS"
	BulkDelete    Kind = "BULK_DELETE"
	BulkUpdate    Kind = "BULK_UPDATE"
	BulkComplete  Kind = "BULK_COMPLETE"
	GetStatistics Kind = "GET_STATISTICS"
	Unclear       Kind = "UNCLEAR"
)

var allKinds = map[Kind]bool{
	CreateTask: true, ListTasks: true, UpdateTask: true, CompleteTask: true,
	DeleteTask: true, SearchTasks: true, BulkDelete: true, BulkUpdate: true,
	BulkComplete: true, GetStatistics: true, Unclear: true,
}

// Mutating reports whether the intent changes task state.
func (k Kind) Mutating() bool {
	switch k {
	case CreateTask, UpdateTask, CompleteTask, DeleteTask, BulkDelete, BulkUpdate, BulkComplete:
		return true
	}
	return false
}

// Bulk reports whether the intent operates on a criteria-selected set.
func (k Kind) Bulk() bool {
	switch k {
	case BulkDelete, BulkUpdate, BulkComplete:
		return true
	}
	return false
}

// Recognized is the typed classification of one user message. Confidence
// and Reasoning are advisory; the 0.6 gate lives in the orchestrator.
type Recognized struct {
	Kind        Kind
	Confidence  float64
	RawEntities map[string]string
	Reasoning   string
}
