package internal

import "fmt"

// StoreError reports a vendor session store that could not be accessed.
// It fails that provider's scan only; other providers proceed.
type StoreError struct {
	Provider string
	Path     string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("unreadable store [%s] %s: %v", e.Provider, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// RecordError reports a partially-written or corrupt vendor session record.
// Records failing this way are skipped and counted, never fatal to a scan.
type RecordError struct {
	Provider string
	Ref      string // session file path or vendor record key
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("malformed record [%s] %s: %v", e.Provider, e.Ref, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// LaunchError reports a vendor executable that could not be started.
// Nothing was captured; run aborts immediately.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch failed [%s]: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// LedgerError reports an unreadable or invalid sync ledger. The idempotency
// guarantee is gone, so pull refuses to proceed without an explicit reset.
type LedgerError struct {
	Path string
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger corrupt %s: %v (re-run with --reset-state to discard it)", e.Path, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}
