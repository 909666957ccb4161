package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "cart")
	require.NotNil(t, c)
	assert.Equal(t, "cart", c.component)

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	require.Len(t, names, 5)

	joined := strings.Join(names, "\n")
	for _, want := range []string{
		"cart_db_pool_acquired_connections",
		"cart_db_pool_idle_connections",
		"cart_db_pool_total_connections",
		"cart_db_pool_max_connections",
		"cart_db_pool_empty_acquire_count_total",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestPoolStatsCollector_ImplementsCollector(t *testing.T) {
	var _ prometheus.Collector = NewPoolStatsCollector(nil, "cart")
}
