package netmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hackfest/syncengine/internal/core/domain"
)

func TestSetOnlineTransitions(t *testing.T) {
	m := New(nil)

	var mu sync.Mutex
	var changes []domain.NetworkState
	unsub := m.Subscribe(func(s domain.NetworkState) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	})
	defer unsub()

	if !m.State().Online {
		t.Fatal("Expected monitor to start online")
	}

	m.SetOnline(false)
	if m.State().Online {
		t.Error("Expected offline after SetOnline(false)")
	}
	if m.State().Quality != domain.QualityOffline {
		t.Errorf("Expected offline quality, got %s", m.State().Quality)
	}

	// Duplicate transition should not notify again
	m.SetOnline(false)

	m.SetOnline(true)
	if !m.State().Online {
		t.Error("Expected online after SetOnline(true)")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Errorf("Expected 2 notifications, got %d", len(changes))
	}
}

func TestOnReconnectFiresOnlyOnRecovery(t *testing.T) {
	m := New(nil)

	fired := 0
	unsub := m.OnReconnect(func() { fired++ })
	defer unsub()

	// Online -> Online(slow) is not a reconnect
	m.transition(domain.NetworkState{Online: true, Quality: domain.QualitySlow, RTT: 2 * time.Second})
	if fired != 0 {
		t.Errorf("Expected no reconnect hook for quality change, got %d", fired)
	}

	m.SetOnline(false)
	if fired != 0 {
		t.Errorf("Expected no reconnect hook going offline, got %d", fired)
	}

	m.SetOnline(true)
	if fired != 1 {
		t.Errorf("Expected exactly one reconnect hook, got %d", fired)
	}
}

func TestSampleQuality(t *testing.T) {
	tests := []struct {
		name   string
		rtt    time.Duration
		err    error
		expect domain.LinkQuality
	}{
		{"fast link", 50 * time.Millisecond, nil, domain.QualityFast},
		{"slow link", 3 * time.Second, nil, domain.QualitySlow},
		{"unreachable", 0, errors.New("connection refused"), domain.QualityOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(func(ctx context.Context) (time.Duration, error) {
				return tt.rtt, tt.err
			}, WithSlowThreshold(1500*time.Millisecond))

			m.Sample(context.Background())
			if got := m.State().Quality; got != tt.expect {
				t.Errorf("Expected quality %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestUnsubscribeDetaches(t *testing.T) {
	m := New(nil)
	calls := 0
	unsub := m.Subscribe(func(domain.NetworkState) { calls++ })

	m.SetOnline(false)
	unsub()
	m.SetOnline(true)

	if calls != 1 {
		t.Errorf("Expected 1 notification after detach, got %d", calls)
	}
}
