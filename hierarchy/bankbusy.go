package hierarchy

// BankBusyMap tracks, per bank, the next cycle at which that bank can
// serve a new access. It is the mechanism by which "one access per bank
// per cycle" (spec glossary) is enforced without modelling real
// concurrency: every bank's next_free value is monotonically
// non-decreasing.
type BankBusyMap struct {
	nextFree []uint64
}

// NewBankBusyMap returns a map with numBanks banks, all free at cycle 0.
func NewBankBusyMap(numBanks int) *BankBusyMap {
	return &BankBusyMap{nextFree: make([]uint64, numBanks)}
}

// Reserve claims bank b for a one-cycle access no earlier than
// currentCycle. It returns the cycle the access actually starts at (which
// may be later than currentCycle if the bank is still busy) and the stall
// incurred, i.e. start-currentCycle.
func (m *BankBusyMap) Reserve(bank int, currentCycle uint64) (start, stall uint64) {
	start = m.nextFree[bank]
	if start < currentCycle {
		start = currentCycle
	}

	stall = start - currentCycle
	m.nextFree[bank] = start + 1

	return start, stall
}

// NextFree returns the current next-free cycle for bank b, without
// reserving it.
func (m *BankBusyMap) NextFree(bank int) uint64 {
	return m.nextFree[bank]
}
