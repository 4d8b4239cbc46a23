package pipeline

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"os"
	"time"
)

// seedRand returns the random generator owned by one job. The seed mixes the process id with
// the fractional wall-clock time so that workers started together diverge, plus crypto entropy
// when available. Failing to read entropy is ignored.
func seedRand() *rand.Rand {
	now := time.Now()
	seed := int64(os.Getpid())*int64(now.Nanosecond()) ^ now.UnixNano()

	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err == nil {
		seed ^= int64(binary.LittleEndian.Uint64(buf[:])) //nolint:gosec
	}

	return rand.New(rand.NewSource(seed)) //nolint:gosec
}
