// Command historyctl is a small operational tool for driving a history
// cache directly against a device, for manual testing and demonstration
// outside of whatever process normally embeds the facade.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ipintdriver/historycache/internal/devicesearch"
	"github.com/ipintdriver/historycache/internal/facade"
	"github.com/ipintdriver/historycache/internal/historycache"
	"github.com/ipintdriver/historycache/pkg/clock"
	"github.com/ipintdriver/historycache/pkg/interval"
)

func main() {
	var (
		loMs    int64
		hiMs    int64
		seed    string
		waitFor time.Duration
	)
	flag.Int64Var(&loMs, "lo", time.Now().Add(-time.Hour).UnixMilli(), "requested range start, unix millis")
	flag.Int64Var(&hiMs, "hi", time.Now().UnixMilli(), "requested range end, unix millis")
	flag.StringVar(&seed, "seed", "0-999999999999", "comma-separated lo-hi ranges the demo device pretends to have recordings for")
	flag.DurationVar(&waitFor, "wait", 3*time.Second, "how long to poll the cache for a full answer before printing whatever is there")
	flag.Parse()

	dev := devicesearch.NewBreakerDevice(newDemoDevice(seed), devicesearch.DefaultBreakerSettings("historyctl"))

	var cfg historycache.Config
	cfg.RegisterFlagsAndApplyDefaults("", &flag.FlagSet{})

	reg := prometheus.NewRegistry()
	logger := log.NewLogfmtLogger(os.Stderr)
	clk := clock.System{}

	cache := historycache.New(dev, cfg, clk, reg, logger)
	if err := cache.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "historyctl: %v\n", err)
		os.Exit(1)
	}

	strand := devicesearch.NewStrand()
	defer strand.Close()
	async := devicesearch.NewAsyncRecordingSearch(dev, strand, "", cfg.SearchTimeout, logger)
	recSrc := devicesearch.NewRecordingSearch(async, time.Second)

	f := facade.New(cache, recSrc)

	requested := interval.New(loMs, hiMs)
	deadline := time.Now().Add(waitFor)
	var status facade.Status
	var result interval.Set
	for {
		status, result = f.GetRecordings(context.Background(), requested, 0, 0)
		if status == facade.StatusFull || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	fmt.Printf("status=%s ranges=%s\n", status, result)
	printStatusTable(cache)

	f.Stop()
	cache.Close()
}

func printStatusTable(c *historycache.Cache) {
	s := c.Snapshot()
	fmt.Printf("state=%s queue_len=%d searching=%s unsuccess_count=%d\n",
		s.State, s.QueueLen, s.SearchingRange, s.UnsuccessCount)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"jobID", "kind", "interval", "created"})
	for _, j := range s.QueueJobs {
		t.AppendRow(table.Row{j.ID, j.Kind, j.Interval, j.CreatedAt.Format(time.RFC3339)})
	}
	fmt.Println(t.Render())
}

// demoDevice is a small scriptable Device standing in for a real
// recording device, so historyctl can be exercised without one.
type demoDevice struct {
	truth []interval.Interval
}

func newDemoDevice(seed string) *demoDevice {
	var truth []interval.Interval
	for _, part := range strings.Split(seed, ",") {
		lo, hi := parseRange(part)
		truth = append(truth, interval.New(lo, hi))
	}
	return &demoDevice{truth: truth}
}

func parseRange(s string) (int64, int64) {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			lo, err1 := strconv.ParseInt(s[:i], 10, 64)
			hi, err2 := strconv.ParseInt(s[i+1:], 10, 64)
			if err1 == nil && err2 == nil {
				return lo, hi
			}
		}
	}
	return 0, 0
}

func (d *demoDevice) Search(ctx context.Context, iv interval.Interval, onRange func(interval.Set), onDone func(devicesearch.Code)) {
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

func (d *demoDevice) SearchCalendar(ctx context.Context, iv interval.Interval, onDays func([]int64), onDone func(devicesearch.Code)) {
	go func() {
		var days []int64
		const dayMs = 86_400_000
		for _, r := range d.truth {
			ov := r.Intersect(iv)
			if ov.IsEmpty() {
				continue
			}
			for d := ov.Lo - ov.Lo%dayMs; d < ov.Hi; d += dayMs {
				days = append(days, d)
			}
		}
		if len(days) > 0 {
			onDays(days)
		}
		onDone(devicesearch.OK)
	}()
}
