package domain

// ReconciliationBatch partitions the dirty lines of an order at submit time.
// It holds copies, so later edits do not change what is being submitted.
type ReconciliationBatch struct {
	ToUpdate []OrderLine
	ToClear  []OrderLine
}

// NewReconciliationBatch builds the batch for lines. Every dirty line lands
// in exactly one of the two sets; clean lines in neither.
func NewReconciliationBatch(lines []OrderLine) ReconciliationBatch {
	var b ReconciliationBatch
	for _, line := range lines {
		if !line.IsDirty() {
			continue
		}
		if line.CurrentQuantity.IsPositive() {
			b.ToUpdate = append(b.ToUpdate, line)
		} else {
			b.ToClear = append(b.ToClear, line)
		}
	}
	return b
}

// IsEmpty reports whether there is nothing to submit
func (b ReconciliationBatch) IsEmpty() bool {
	return len(b.ToUpdate) == 0 && len(b.ToClear) == 0
}

// Size is the number of lines in the batch
func (b ReconciliationBatch) Size() int {
	return len(b.ToUpdate) + len(b.ToClear)
}
