// Package idhash derives deterministic identifiers from run parameters.
// The same inputs always produce the same ID, so re-running a backtest
// overwrites its previous record instead of accumulating duplicates.
package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"equity-backtest-lab/internal/domain"
)

// RunID returns the canonical identifier for a simulation run: a
// base58-encoded SHA-256 over the parameters that define it.
func RunID(strategy string, start, end time.Time, freq domain.Frequency, initialCapital float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%.2f",
		strategy,
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
		freq,
		initialCapital,
	)
	return base58.Encode(h.Sum(nil))
}
