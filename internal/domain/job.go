package domain

import (
	"crypto/rand"
	"time"
)

// JobID is an opaque token identifying one logical intake job. It is minted
// locally and never derived from inbound data; uniqueness is probabilistic.
type JobID string

const jobIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewJobID mints a job id of the form "job_" followed by 7 base36 characters.
func NewJobID() JobID {
	var buf [7]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand is unavailable; degrade to a time-derived suffix.
		n := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(n >> (8 * i))
		}
	}
	for i := range buf {
		buf[i] = jobIDAlphabet[int(buf[i])%len(jobIDAlphabet)]
	}
	return JobID("job_" + string(buf[:]))
}
