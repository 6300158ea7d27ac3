package notifier

import "time"

type Config struct {
	RatePerSec int
	Burst      int

	// DedupWindow suppresses identical texts to the same recipient.
	// 0 disables dedup.
	DedupWindow     time.Duration
	DedupMaxEntries int

	HistorySize int
}

type HistoryItem struct {
	At        time.Time
	Recipient int64
	Text      string
	Error     string
	Deduped   bool
}
