package receipt

import "time"

const (
	// SchemaVersion is stamped into every encoded receipt and sent as the protocol header.
	SchemaVersion = "1.0.0"

	// HeaderExtensionVersion carries the build version of the sending extension.
	HeaderExtensionVersion = "x-batch-ext-version"
	// HeaderProtocolVersion carries SchemaVersion.
	HeaderProtocolVersion = "x-batch-protocol-version"

	// DefaultTimeout bounds a single network delivery attempt.
	DefaultTimeout = 20 * time.Second

	// DefaultCacheDirectory is the directory created inside the shared app-group container.
	DefaultCacheDirectory = "com.batch.displayreceipts"
	// CacheFileFormat builds a cache file name from a fresh identifier.
	CacheFileFormat = "%s.bin"
	// CacheFileExt is the suffix of every committed cache file.
	CacheFileExt = ".bin"

	// DefaultMaxCacheFiles bounds the number of cached receipts.
	DefaultMaxCacheFiles = 5
	// DefaultMaxCacheAge is 30 days (2,592,000s).
	DefaultMaxCacheAge = 2592000 * time.Second
)
