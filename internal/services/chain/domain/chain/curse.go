package chain

// MaxCurseLevel caps the escalating curse rank.
const MaxCurseLevel = 5

// CurseLevel maps a chain length to its curse level.
//
// The level starts at 1, rises by one for every three chapters, and is
// capped at MaxCurseLevel. It is total over all inputs, including
// non-positive lengths, and monotonically non-decreasing in chain length.
func CurseLevel(chainLength int) int {
	if chainLength < 0 {
		chainLength = 0
	}
	level := chainLength/3 + 1
	if level > MaxCurseLevel {
		return MaxCurseLevel
	}
	return level
}
