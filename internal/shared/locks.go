package shared

import "hash/fnv"

// BillingLockKey derives the pg_advisory_xact_lock key that serialises
// billing generation for one business and month.
func BillingLockKey(businessID int64, month, year int) int64 {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v int64) {
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	write(businessID)
	write(int64(year))
	write(int64(month))
	return int64(h.Sum64() >> 1)
}
