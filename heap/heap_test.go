package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n1ght-hunter/rtmalloc/config"
	"github.com/n1ght-hunter/rtmalloc/platform"
)

func newTestHeap(t *testing.T) *Heap {
	setts := config.Defaultsettings()
	setts["max_pages_bucket"] = int64(64)
	cfg, err := config.Validate(setts)
	require.NoError(t, err)

	h, err := NewWithAdapter(cfg, platform.NewFakeAdapter(cfg.PageSize))
	require.NoError(t, err)
	return h
}
