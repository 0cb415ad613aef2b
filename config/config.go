package config

import (
	gosettings "github.com/bnclabs/gosettings"

	"github.com/cloudfoundry/gosigar"

	"github.com/n1ght-hunter/rtmalloc/heaperrors"
	"github.com/n1ght-hunter/rtmalloc/sizeclass"
)

// Settings is the allocator's initialization structure, a direct alias
// of gosettings.Settings (the same flat map[string]interface{} every
// bnclabs component — bogn, bubt, llrb — threads through New/readsettings).
// Section/Trim/Mixin/Int64 are the library's own methods; this package
// only adds the allocator-specific classes()/Validate() functions on
// top. Keys:
// page_size, thread_cache_size_max, max_transfer_slots,
// max_pages_bucket, classes (a []ClassEntry).
type Settings = gosettings.Settings

// ClassEntry mirrors sizeclass.Entry for the config boundary; Pages and
// Batch of zero mean "let the size-class table compute it".
type ClassEntry struct {
	Size  int64
	Pages int64
	Batch int64
}

// Defaultsettings builds a Settings populated with sane defaults, sizing
// thread_cache_size_max off total system memory the way
// llrb.Defaultsettings and bogn.Defaultsettings size their own caches
// from sigar.Mem{}.
func Defaultsettings() Settings {
	mem := sigar.Mem{}
	var totalBytes uint64 = 4 << 30 // 4GiB fallback if sigar can't read /proc
	if err := mem.Get(); err == nil && mem.Total > 0 {
		totalBytes = mem.Total
	}

	// Budget each frontend instance at roughly 1/1024th of total RAM,
	// floored and capped to sane bounds.
	budget := int64(totalBytes / 1024)
	if budget < 1<<20 {
		budget = 1 << 20
	}
	if budget > 64<<20 {
		budget = 64 << 20
	}

	return Settings{
		"page_size":             int64(4096),
		"thread_cache_size_max": budget,
		"max_transfer_slots":    int64(64),
		"max_pages_bucket":      int64(256),
		"classes":               defaultClasses(),
	}
}

// defaultClasses is a tcmalloc-shaped geometric size-class ladder from 8
// bytes to 256KiB, letting the table compute pages and batch size for
// every entry.
func defaultClasses() []ClassEntry {
	sizes := []int64{
		8, 16, 24, 32, 48, 64, 80, 96, 112, 128,
		160, 192, 224, 256, 320, 384, 448, 512,
		640, 768, 896, 1024, 1280, 1536, 1792, 2048,
		2688, 3200, 4096, 8192, 16384, 32768, 65536,
		131072, 262144,
	}
	out := make([]ClassEntry, len(sizes))
	for i, s := range sizes {
		out[i] = ClassEntry{Size: s}
	}
	return out
}

// classes returns the configured class entries, panicking if the key is
// missing or of the wrong type. Unlike Int64/Section/Trim/Mixin, this
// key's value shape is specific to this package, so it cannot live as
// a method on the aliased gosettings.Settings type; it is a plain
// function instead.
func classes(s Settings) []ClassEntry {
	value, ok := s["classes"]
	if !ok {
		panic("config: missing settings classes")
	}
	classes, ok := value.([]ClassEntry)
	if !ok {
		panic("config: settings classes is not a []ClassEntry")
	}
	return classes
}

// Config is the strongly typed, validated form of Settings, the shape
// heap.New actually consumes.
type Config struct {
	PageSize           int64
	ThreadCacheSizeMax int64
	MaxTransferSlots   int64
	MaxPagesBucket     int64
	Table              *sizeclass.Table
}

// Validate converts Settings into a Config, returning
// heaperrors.ErrConfigurationInvalid wrapped with detail on the first
// violated precondition. A plain function rather than a method for the
// same reason classes() is: Settings is an alias of gosettings.Settings,
// declared in another package, so this package cannot attach methods to
// it directly — only use the ones gosettings itself exports (Int64,
// Section, Trim, Mixin).
func Validate(s Settings) (Config, error) {
	pageSize := s.Int64("page_size")
	if pageSize <= 0 || pageSize&(pageSize-1) != 0 {
		return Config{}, heaperrors.Invalidf("page_size %d is not a power of two", pageSize)
	}

	threadCacheMax := s.Int64("thread_cache_size_max")
	if threadCacheMax <= 0 {
		return Config{}, heaperrors.Invalidf("thread_cache_size_max %d must be positive", threadCacheMax)
	}

	maxTransferSlots := s.Int64("max_transfer_slots")
	if maxTransferSlots <= 0 {
		return Config{}, heaperrors.Invalidf("max_transfer_slots %d must be positive", maxTransferSlots)
	}

	maxPagesBucket := s.Int64("max_pages_bucket")
	if maxPagesBucket <= 0 {
		return Config{}, heaperrors.Invalidf("max_pages_bucket %d must be positive", maxPagesBucket)
	}

	cls := classes(s)
	if len(cls) == 0 {
		return Config{}, heaperrors.Invalidf("classes must not be empty")
	}
	entries := make([]sizeclass.Entry, len(cls))
	for i, c := range cls {
		entries[i] = sizeclass.Entry{Size: c.Size, Pages: c.Pages, Batch: c.Batch}
	}
	table, err := sizeclass.New(entries, pageSize)
	if err != nil {
		return Config{}, heaperrors.Invalidf("%s", err.Error())
	}

	return Config{
		PageSize:           pageSize,
		ThreadCacheSizeMax: threadCacheMax,
		MaxTransferSlots:   maxTransferSlots,
		MaxPagesBucket:     maxPagesBucket,
		Table:              table,
	}, nil
}
