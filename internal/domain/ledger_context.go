package domain

import "context"

type ledgerCtxKey struct{}

// WithLedger injects the session's cost ledger into the context so adapters
// below the SearchBackend boundary can record token spend without widening
// every interface.
func WithLedger(ctx context.Context, ledger *CostLedger) context.Context {
	return context.WithValue(ctx, ledgerCtxKey{}, ledger)
}

// LedgerFromContext extracts the session ledger, or nil when the call is not
// part of a metered session.
func LedgerFromContext(ctx context.Context) *CostLedger {
	ledger, _ := ctx.Value(ledgerCtxKey{}).(*CostLedger)
	return ledger
}
