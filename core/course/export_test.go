package course

import "time"

func SetPurgeBackoff(d time.Duration) (restore func()) {
	old := purgeBackoff
	purgeBackoff = d
	return func() { purgeBackoff = old }
}

func SetPurgeMaxAttempts(n int) (restore func()) {
	old := purgeMaxAttempts
	purgeMaxAttempts = n
	return func() { purgeMaxAttempts = old }
}
