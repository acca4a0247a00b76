package app

// TransferOperation tracks a CLI operation that moves data. Operations are
// created in memory with ID=0. Only transfer commands persist them to the
// local index (giving them an auto-increment ID).
type TransferOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewTransferOperation creates a new in-memory transfer operation.
func NewTransferOperation(operation, parameters string) *TransferOperation {
	return &TransferOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the local index.
func (op *TransferOperation) Persisted() bool {
	return op.ID != 0
}
