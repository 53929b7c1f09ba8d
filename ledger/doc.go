// Package ledger is the host the registry program runs on.
//
// A Ledger holds accounts (owner, balance, data) in an AccountStore, verifies
// transaction signatures, hands each instruction a view of its accounts, and
// commits the result of a whole transaction atomically. Programs reach the
// storage allocator, the clock and the event sink through Env.
//
// Balances are in lamports. Every account that holds data must carry at least
// Rent(len(data)); accounts whose balance drops to zero are purged on commit.
package ledger
