package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager makes a turn insert and its session aggregate update
// (plus any accompanying agent logs) one atomic unit. A reader must never
// observe a turn without its session aggregate reflecting it, nor the
// reverse mid-update.
type TransactionManager interface {
	// ExecTx executes a function within a transaction
	ExecTx(ctx context.Context, fn TxFn) error
}
