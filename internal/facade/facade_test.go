package facade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipintdriver/historycache/internal/devicesearch"
	"github.com/ipintdriver/historycache/internal/historycache"
	"github.com/ipintdriver/historycache/pkg/clock"
	"github.com/ipintdriver/historycache/pkg/interval"
)

type fakeDevice struct {
	mu    sync.Mutex
	truth []interval.Interval
	calls int
}

func (d *fakeDevice) Search(ctx context.Context, iv interval.Interval, onRange func(interval.Set), onDone func(devicesearch.Code)) {
	go func() {
		var found interval.Set
		for _, r := range d.truth {
			if ov := r.Intersect(iv); !ov.IsEmpty() {
				found = found.AddInterval(ov)
			}
		}
		if !found.IsEmpty() {
			onRange(found)
		}
		onDone(devicesearch.OK)
	}()
}

func (d *fakeDevice) SearchCalendar(ctx context.Context, iv interval.Interval, onDays func([]int64), onDone func(devicesearch.Code)) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	go func() {
		time.Sleep(20 * time.Millisecond)
		onDays([]int64{iv.Lo})
		onDone(devicesearch.OK)
	}()
}

func testConfig() historycache.Config {
	return historycache.Config{
		UpdateCacheTimeout:       time.Hour,
		RecentRequestInterval:    50 * time.Millisecond,
		EmptyResultTrustInterval: 30 * time.Second,
		SearchTimeout:            time.Second,
		QueueDepthThreshold:      30 * time.Second,
	}
}

func waitQuiescent(t *testing.T, c *historycache.Cache) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == historycache.StateStopped {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("cache never quiesced")
}

func TestFacadeGetRecordingsStatusMapping(t *testing.T) {
	dev := &fakeDevice{truth: []interval.Interval{interval.New(1, 10)}}
	clk := clock.NewFake(time.Unix(0, 1_000_000))
	cache := historycache.New(dev, testConfig(), clk, nil, nil)
	f := New(cache, nil)

	status, _ := f.GetRecordings(context.Background(), interval.New(1, 10), 0, 0)
	assert.Equal(t, StatusPartial, status)

	waitQuiescent(t, cache)

	status, result := f.GetRecordings(context.Background(), interval.New(1, 10), 0, 0)
	assert.Equal(t, StatusFull, status)
	assert.Equal(t, []interval.Interval{{1, 10}}, result.Items())
}

func TestFacadeGetCalendarCoalescesConcurrentRequests(t *testing.T) {
	dev := &fakeDevice{}
	clk := clock.NewFake(time.Unix(0, 1_000_000))
	cache := historycache.New(dev, testConfig(), clk, nil, nil)
	strand := devicesearch.NewStrand()
	defer strand.Close()
	async := devicesearch.NewAsyncRecordingSearch(dev, strand, "", time.Second, nil)
	rs := devicesearch.NewRecordingSearch(async, time.Millisecond)
	f := New(cache, rs)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			days, err := f.GetCalendar(context.Background(), interval.New(100, 200))
			require.NoError(t, err)
			require.Len(t, days, 1)
		}()
	}
	wg.Wait()

	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.Equal(t, 1, dev.calls)
}

func TestFacadeGetCalendarUnimplementedWithoutRecordingSource(t *testing.T) {
	dev := &fakeDevice{}
	clk := clock.NewFake(time.Unix(0, 1_000_000))
	cache := historycache.New(dev, testConfig(), clk, nil, nil)
	f := New(cache, nil)

	_, err := f.GetCalendar(context.Background(), interval.New(0, 10))
	assert.Error(t, err)
}
