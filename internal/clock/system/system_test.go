package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

var _ harvest.Clock = (*Clock)(nil)

func TestNowIsCurrentUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	got := New().Now()

	assert.Equal(t, time.UTC, got.Location())
	assert.WithinDuration(t, before, got, 2*time.Second)
}
