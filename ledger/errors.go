package ledger

import "errors"

var (
	ErrAccountNotFound    = errors.New("ledger: account not found")
	ErrAccountInUse       = errors.New("ledger: account already in use")
	ErrAccountTooLarge    = errors.New("ledger: account data too large")
	ErrInsufficientFunds  = errors.New("ledger: insufficient funds")
	ErrBalanceOverflow    = errors.New("ledger: balance overflow")
	ErrMissingSignature   = errors.New("ledger: missing required signature")
	ErrUnknownProgram     = errors.New("ledger: unknown program")
	ErrEmptyTransaction   = errors.New("ledger: transaction has no instructions")
	ErrSeedMismatch       = errors.New("ledger: derived address does not match account")
	ErrEventAuthority     = errors.New("ledger: event authority does not belong to program")
	ErrReadonlyModified   = errors.New("ledger: read-only account modified")
	ErrExternalModified   = errors.New("ledger: account data or owner modified by non-owner")
	ErrExternalDebit      = errors.New("ledger: balance debited by non-owner")
	ErrExecutableModified = errors.New("ledger: executable account modified")
	ErrUnbalanced         = errors.New("ledger: instruction did not conserve balances")
	ErrNotWritable        = errors.New("ledger: account not writable")
	ErrNotSigner          = errors.New("ledger: account did not sign")
	ErrNotOwner           = errors.New("ledger: account not owned by program")
	ErrMalformedAccount   = errors.New("ledger: malformed account encoding")
)
