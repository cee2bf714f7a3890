package types

import "math/big"

// Account is the per-address ledger record for the reward token. Balances are
// big integers so settlement math never wraps even when callers hold amounts
// far above the uint64 economic parameters.
type Account struct {
	Nonce      uint64   `json:"nonce"`
	BalanceZen *big.Int `json:"balanceZen"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, BalanceZen: big.NewInt(0)}
	if a.BalanceZen != nil {
		clone.BalanceZen = new(big.Int).Set(a.BalanceZen)
	}
	return clone
}

// EnsureDefaults normalises nil balance pointers so callers can mutate the
// account without nil checks.
func (a *Account) EnsureDefaults() {
	if a == nil {
		return
	}
	if a.BalanceZen == nil {
		a.BalanceZen = big.NewInt(0)
	}
}
