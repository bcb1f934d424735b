package bptree

// Options represents the configuration options for the B+ tree.
type Options struct {
	// CacheSize is the number of pages kept by a read cache placed in front
	// of the store. Pages are immutable once written, so the cache never
	// serves stale data. Zero disables the cache.
	CacheSize int `json:"cache_size"`

	// VerifyWrites checks the ordering of every node before it is written
	// to the store. Useful in tests, costs a scan per written page.
	VerifyWrites bool `json:"verify_writes"`
}

var defaultOptions = Options{
	CacheSize:    0,
	VerifyWrites: false,
}
