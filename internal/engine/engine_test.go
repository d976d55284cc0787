package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmaier/listify/internal/engine"
	"github.com/dmaier/listify/internal/metrics"
	"github.com/dmaier/listify/internal/store"
	"github.com/dmaier/listify/internal/store/mocks"
	"github.com/dmaier/listify/pkg/logger"
)

type fakeRefresher struct {
	windows []time.Duration
}

func (f *fakeRefresher) RefreshExpiring(_ context.Context, window time.Duration) {
	f.windows = append(f.windows, window)
}

func TestEngine_RunTokenRefreshSweep(t *testing.T) {
	t.Parallel()

	refresher := &fakeRefresher{}
	eng := engine.New(mocks.NewMockStore(t), refresher, 10*time.Minute, logger.Discard())

	eng.RunTokenRefreshSweep(context.Background())

	require.Len(t, refresher.windows, 1)
	assert.Equal(t, 10*time.Minute, refresher.windows[0])
}

func TestEngine_RunCatalogStats(t *testing.T) {
	t.Parallel()

	s := mocks.NewMockStore(t)
	s.EXPECT().CountProducts(mock.Anything).Return(&store.CatalogCounts{
		Total:         12,
		PublishedEbay: 4,
		PublishedEtsy: 7,
	}, nil).Once()

	eng := engine.New(s, &fakeRefresher{}, time.Minute, logger.Discard())

	require.NoError(t, eng.RunCatalogStats(context.Background()))

	assert.Equal(t, float64(12), testutil.ToFloat64(metrics.CatalogProducts))
	assert.Equal(t, float64(4),
		testutil.ToFloat64(metrics.CatalogPublished.WithLabelValues("ebay")))
	assert.Equal(t, float64(7),
		testutil.ToFloat64(metrics.CatalogPublished.WithLabelValues("etsy")))
}

func TestEngine_RunCatalogStats_StoreError(t *testing.T) {
	t.Parallel()

	s := mocks.NewMockStore(t)
	s.EXPECT().
		CountProducts(mock.Anything).
		Return(nil, errors.New("connection refused")).
		Once()

	eng := engine.New(s, &fakeRefresher{}, time.Minute, logger.Discard())

	err := eng.RunCatalogStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
