package db

import (
	"encoding/json"
	"testing"
	"time"
)

type fakeStat struct {
	total, idle, acquired, max int32
	count                      int64
	wait                       time.Duration
}

func (f fakeStat) TotalConns() int32              { return f.total }
func (f fakeStat) IdleConns() int32               { return f.idle }
func (f fakeStat) AcquiredConns() int32           { return f.acquired }
func (f fakeStat) MaxConns() int32                { return f.max }
func (f fakeStat) AcquireCount() int64            { return f.count }
func (f fakeStat) AcquireDuration() time.Duration { return f.wait }

func TestStatsFrom(t *testing.T) {
	s := statsFrom(fakeStat{total: 4, idle: 3, acquired: 1, max: 10, count: 42, wait: 1500 * time.Millisecond})
	if s.TotalConns != 4 || s.IdleConns != 3 || s.AcquiredConns != 1 || s.MaxConns != 10 || s.AcquireCount != 42 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.AcquireDuration != "1.5s" {
		t.Errorf("expected 1.5s, got %s", s.AcquireDuration)
	}
	if !s.Healthy {
		t.Error("expected a pool with connections to be healthy")
	}
	if statsFrom(fakeStat{max: 10}).Healthy {
		t.Error("expected an empty pool to be unhealthy")
	}
}

func TestPoolStats_JSONTags(t *testing.T) {
	b, err := json.Marshal(PoolStats{TotalConns: 1, Healthy: true})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"total_conns", "idle_conns", "acquired_conns", "max_conns", "acquire_count", "acquire_duration", "healthy"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing JSON key %q", key)
		}
	}
}
