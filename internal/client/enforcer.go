package client

import "github.com/Ali-Naji-3/wallet-notify/internal/domain"

// Verdict is the consistency enforcer's decision for one delta frame.
type Verdict int

const (
	// VerdictNormal lets the whole batch through the normal merge path.
	VerdictNormal Verdict = iota

	// VerdictSuspension delivers only the suspension event; its siblings
	// are dropped from the batch entirely.
	VerdictSuspension

	// VerdictForcedLogout short-circuits the batch to run the forced
	// session teardown. Nothing from the batch is merged or delivered.
	VerdictForcedLogout
)

// Inspect classifies a delta batch before any of it reaches generic
// handling. The rules form a strict total order, evaluated once per frame:
// a balance-affecting admin credit preempts a suspension, which preempts
// normal delivery.
//
// A credited balance invalidates any wallet totals the client caches, so the
// only safe recovery is a forced re-authentication. A known-suspended
// account makes every sibling notification in the batch untrustworthy, so
// only the suspension itself is shown.
func Inspect(batch []domain.Notification) (Verdict, domain.Notification) {
	for _, n := range batch {
		if domain.IsBalanceCredit(n) {
			return VerdictForcedLogout, n
		}
	}
	for _, n := range batch {
		if domain.IsSuspension(n) {
			return VerdictSuspension, n
		}
	}
	return VerdictNormal, domain.Notification{}
}
