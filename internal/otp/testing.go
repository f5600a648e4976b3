package otp

// CountCodes is a test helper reporting how many rows the in-memory repository
// holds for a phone number. It returns -1 for other repository types.
func CountCodes(r Repository, phone string) int {
	mem, ok := r.(*memoryRepository)
	if !ok {
		return -1
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	n := 0
	for _, c := range mem.codes {
		if c.Phone == phone {
			n++
		}
	}
	return n
}

// LatestValue is a test helper returning the newest code value stored for a
// phone number in the in-memory repository, or 0 when there is none.
func LatestValue(r Repository, phone string) int {
	mem, ok := r.(*memoryRepository)
	if !ok {
		return 0
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var latest Code
	for _, c := range mem.codes {
		if c.Phone == phone && !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	return latest.Value
}
