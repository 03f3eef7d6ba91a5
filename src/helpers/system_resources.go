package helpers

// fallbackMemoryMB is used when the platform probe cannot read the
// machine's physical memory.
const fallbackMemoryMB = 512

// HistoryMemoryBudgetMB returns the budget the in-memory history
// buffers may grow into, derived from the machine's physical memory.
func HistoryMemoryBudgetMB() int {
	return clampMemoryBudget(totalSystemMemoryMB())
}

// clampMemoryBudget applies the sizing policy: 75% of total RAM,
// floored at 512MB on machines that have it.
func clampMemoryBudget(totalMB int) int {
	if totalMB <= 0 {
		return fallbackMemoryMB
	}

	budget := totalMB * 3 / 4
	if budget >= fallbackMemoryMB {
		return budget
	}
	if totalMB < fallbackMemoryMB {
		return totalMB
	}
	return fallbackMemoryMB
}
