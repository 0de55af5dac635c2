package hierarchy

// LineOf maps a byte address to its line-aligned key: floor to the line
// size. An address that is not line-aligned is accepted; alignment is
// implicit via integer division.
func LineOf(byteAddress uint64, lineBytes int) uint64 {
	return byteAddress / uint64(lineBytes)
}

// BankT1 routes a line key to its tier-1 bank using low-order line-index
// bits. Preserved bit-for-bit per spec §9's open question: higher-quality
// hashing is not used here, to keep bank-conflict rates reproducible.
func BankT1(lineKey uint64, numT1Banks int) int {
	return int(lineKey % uint64(numT1Banks))
}

// BankT2 routes a line key to its tier-2 bank using the next low-order
// bits above those tier-1 already consumed.
func BankT2(lineKey uint64, numT1Banks, numT2Banks int) int {
	return int((lineKey / uint64(numT1Banks)) % uint64(numT2Banks))
}
