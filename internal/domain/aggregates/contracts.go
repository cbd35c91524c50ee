package aggregates

// TxOwner says which layer opens the transaction around a write.
type TxOwner string

const (
	// TxOwnedByAggregate: write methods open, retry and commit their own
	// transaction. Callers must not pass one in.
	TxOwnedByAggregate TxOwner = "aggregate"
	// TxOwnedByCaller: write methods join the transaction carried by dbctx.
	TxOwnedByCaller TxOwner = "caller"
)

// Contract describes how an aggregate guards its invariants.
type Contract struct {
	Name    string
	TxOwner TxOwner
	// LockScope names the row every write serialises on.
	LockScope string
	// Invariants lists the properties every committed write preserves.
	Invariants []string
	// Emits lists the audit actions a successful write may produce.
	Emits []string
}

// Aggregate is implemented by every write boundary that publishes a Contract.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) OwnsTx() bool {
	return c.TxOwner == TxOwnedByAggregate
}

// EmitsAction reports whether action is one of the contract's audit actions.
func (c Contract) EmitsAction(action string) bool {
	for _, a := range c.Emits {
		if a == action {
			return true
		}
	}
	return false
}
