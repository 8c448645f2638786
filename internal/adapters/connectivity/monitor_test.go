package connectivity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeProber scripts health probe results.
type fakeProber struct {
	mu      sync.Mutex
	healthy bool
	calls   int
}

func (f *fakeProber) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.healthy {
		return fmt.Errorf("connection refused")
	}
	return nil
}

func (f *fakeProber) setHealthy(healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = healthy
}

func TestMonitor_ManualTransitions(t *testing.T) {
	m := NewMonitor(nil, Config{}, nil)

	var onlineCount, offlineCount int
	m.OnOnline(func() { onlineCount++ })
	m.OnOffline(func() { offlineCount++ })

	if m.IsOnline() {
		t.Error("IsOnline() = true at startup, want false")
	}

	m.SetOnline(true)
	if !m.IsOnline() {
		t.Error("IsOnline() = false after SetOnline(true)")
	}
	if onlineCount != 1 {
		t.Errorf("online callbacks = %d, want 1", onlineCount)
	}

	// Repeated signals in the same state do not re-fire.
	m.SetOnline(true)
	if onlineCount != 1 {
		t.Errorf("online callbacks after repeat = %d, want 1", onlineCount)
	}

	m.SetOnline(false)
	if offlineCount != 1 {
		t.Errorf("offline callbacks = %d, want 1", offlineCount)
	}
}

func TestMonitor_CallbackOrder(t *testing.T) {
	m := NewMonitor(nil, Config{}, nil)

	var order []int
	m.OnOnline(func() { order = append(order, 1) })
	m.OnOnline(func() { order = append(order, 2) })
	m.OnOnline(func() { order = append(order, 3) })

	m.SetOnline(true)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("callback order = %v, want [1 2 3]", order)
	}
}

func TestMonitor_CallbacksMayReadState(t *testing.T) {
	m := NewMonitor(nil, Config{}, nil)

	var sawOnline bool
	m.OnOnline(func() { sawOnline = m.IsOnline() })

	m.SetOnline(true)
	if !sawOnline {
		t.Error("callback observed IsOnline() = false during online dispatch")
	}
}

func TestMonitor_ProbeDrivesState(t *testing.T) {
	prober := &fakeProber{healthy: true}
	m := NewMonitor(prober, Config{
		ProbeInterval: 10 * time.Millisecond,
		ProbeTimeout:  time.Second,
	}, nil)

	online := make(chan struct{}, 1)
	offline := make(chan struct{}, 1)
	m.OnOnline(func() {
		select {
		case online <- struct{}{}:
		default:
		}
	})
	m.OnOffline(func() {
		select {
		case offline <- struct{}{}:
		default:
		}
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Close()

	select {
	case <-online:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never came online")
	}

	prober.setHealthy(false)
	select {
	case <-offline:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never went offline")
	}
}

func TestMonitor_MarkerFileForcesOffline(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "offline")
	prober := &fakeProber{healthy: true}
	m := NewMonitor(prober, Config{
		ProbeInterval: 10 * time.Millisecond,
		ProbeTimeout:  time.Second,
		Debounce:      20 * time.Millisecond,
		OfflineMarker: marker,
	}, nil)

	online := make(chan struct{}, 1)
	offline := make(chan struct{}, 1)
	m.OnOnline(func() {
		select {
		case online <- struct{}{}:
		default:
		}
	})
	m.OnOffline(func() {
		select {
		case offline <- struct{}{}:
		default:
		}
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Close()

	select {
	case <-online:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never came online")
	}

	// Creating the marker forces offline even though probes succeed.
	if err := os.WriteFile(marker, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	select {
	case <-offline:
	case <-time.After(2 * time.Second):
		t.Fatal("marker file did not force offline")
	}

	// Removing the marker lets the next probe restore online.
	if err := os.Remove(marker); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	select {
	case <-online:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not recover after marker removal")
	}
}

func TestMonitor_CloseStopsGoroutine(t *testing.T) {
	prober := &fakeProber{healthy: true}
	m := NewMonitor(prober, Config{ProbeInterval: 5 * time.Millisecond}, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	prober.mu.Lock()
	calls := prober.calls
	prober.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	prober.mu.Lock()
	after := prober.calls
	prober.mu.Unlock()
	if after != calls {
		t.Errorf("probes continued after Close(): %d -> %d", calls, after)
	}
}

func TestMonitor_CloseAfterFailedStart(t *testing.T) {
	// A regular file occupies the path the marker's parent directory
	// needs, so watcher setup fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	m := NewMonitor(&fakeProber{healthy: true}, Config{
		ProbeInterval: 5 * time.Millisecond,
		OfflineMarker: filepath.Join(blocker, "offline"),
	}, nil)

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want watcher setup failure")
	}

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close() blocked after failed Start()")
	}
}
