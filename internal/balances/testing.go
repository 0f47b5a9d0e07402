package balances

import "github.com/personal-bank/personal_bank/internal/account"

// SeedBalance is a test helper that writes an entry directly when using the in-memory store.
// It bypasses the deposit journal, so audits of seeded accounts do not balance.
func SeedBalance(s Store, acct account.Address, amount uint64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.entries[acct] = amount
	}
}
