package domain

// EngineState is the lifecycle state of a loaded order
type EngineState string

const (
	StateEmpty               EngineState = "empty"
	StateLoaded              EngineState = "loaded"
	StateEditing             EngineState = "editing"
	StateSubmitting          EngineState = "submitting"
	StateReconciled          EngineState = "reconciled"
	StatePartiallyReconciled EngineState = "partially_reconciled"
	StateRefreshing          EngineState = "refreshing"
)

// WriteOp names the kind of per-line write
type WriteOp string

const (
	OpUpdate WriteOp = "update"
	OpClear  WriteOp = "clear"
)
