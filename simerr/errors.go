// Package simerr defines the error kinds that the simulator core can
// return. Every failure surfaces to the caller instead of being recovered
// locally: the simulator's value is deterministic, correct accounting, so
// any internal anomaly belongs to the caller to inspect.
package simerr

import (
	"errors"
	"fmt"
)

// Sentinel values for the five failure kinds spec §7 names, one per error
// struct below, following the same ErrXxx convention as akita's
// v5/timing.ErrNoFrequencyDomains. Callers that only care about the kind,
// not the offending value, can match with errors.Is(err, simerr.ErrConfig)
// etc.; callers that need the offending value use errors.As on the
// concrete struct type instead.
var (
	ErrConfig             = errors.New("simerr: config error")
	ErrAddressOverflow    = errors.New("simerr: address overflow")
	ErrTier2Miss          = errors.New("simerr: tier-2 miss")
	ErrInvariantViolation = errors.New("simerr: invariant violation")
	ErrBudgetExceeded     = errors.New("simerr: budget exceeded")
)

// ConfigError reports an invalid configuration rejected at construction
// time. No simulator is created when this is returned.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfig, so callers can classify this
// error with errors.Is without a type assertion.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// AddressOverflow reports a byte address that does not fit in the line-key
// range the simulator was built for.
type AddressOverflow struct {
	ByteAddress uint64
}

func (e *AddressOverflow) Error() string {
	return fmt.Sprintf("address overflow: byte address 0x%x exceeds the representable line-key range", e.ByteAddress)
}

// Is reports whether target is ErrAddressOverflow.
func (e *AddressOverflow) Is(target error) bool { return target == ErrAddressOverflow }

// Tier2Miss reports a tier-2 access that did not hit. In this design tier-2
// is always-hit by construction; a miss indicates a broken co-design choice
// upstream (capacity too small for the workload), not a modelled path to
// off-chip memory.
type Tier2Miss struct {
	LineKey uint64
}

func (e *Tier2Miss) Error() string {
	return fmt.Sprintf("tier-2 miss on line key %d: capacity too small for this workload", e.LineKey)
}

// Is reports whether target is ErrTier2Miss.
func (e *Tier2Miss) Is(target error) bool { return target == ErrTier2Miss }

// InvariantViolation reports an internal bookkeeping inconsistency, such as
// an eviction target that is itself in-flight with no alternative victim.
// This is a bug signal, not a user error, so it carries enough structure for
// programmatic inspection rather than a bare string.
type InvariantViolation struct {
	Reason  string
	LineKey uint64
	Bank    int
	Cycle   uint64
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation at cycle %d, bank %d, line %d: %s",
		e.Cycle, e.Bank, e.LineKey, e.Reason)
}

// Is reports whether target is ErrInvariantViolation.
func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariantViolation }

// BudgetExceeded reports that the optional soft cycle cap tripped. The
// caller receives the partial metrics gathered up to the point of failure.
type BudgetExceeded struct {
	MaxCycles uint64
}

func (e *BudgetExceeded) Error() string {
	return fmt.Sprintf("budget exceeded: current cycle reached the configured cap of %d", e.MaxCycles)
}

// Is reports whether target is ErrBudgetExceeded.
func (e *BudgetExceeded) Is(target error) bool { return target == ErrBudgetExceeded }
