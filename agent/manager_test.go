package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/razim-manzoor/AI-Data-Analyst/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.APIKey = "test-key"
	cfg.ModelName = "model-a"
	return cfg
}

func countingFactory(constructions *int64, completer Completer, err error) CompleterFactory {
	return func(context.Context, Kind, config.Config) (Completer, error) {
		atomic.AddInt64(constructions, 1)
		return completer, err
	}
}

func TestManagerGetCachesHandles(t *testing.T) {
	var constructions int64
	m := NewManager(testConfig(), countingFactory(&constructions, &fakeCompleter{reply: "OK"}, nil), nil)

	h1, err := m.Get(KindSQL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	h2, err := m.Get(KindSQL)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if h1 != h2 {
		t.Fatal("repeated Get returned distinct handles")
	}
	if constructions != 1 {
		t.Fatalf("constructions = %d, want 1", constructions)
	}

	if _, err := m.Get(KindRouter); err != nil {
		t.Fatalf("Get(router) failed: %v", err)
	}
	if constructions != 2 {
		t.Fatalf("constructions after second kind = %d, want 2", constructions)
	}
}

// Concurrent first access builds each handle exactly once.
func TestManagerSingleConstructionUnderConcurrency(t *testing.T) {
	var constructions int64
	m := NewManager(testConfig(), countingFactory(&constructions, &fakeCompleter{reply: "OK"}, nil), nil)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Get(KindChart); err != nil {
				t.Errorf("Get failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if constructions != 1 {
		t.Fatalf("constructions = %d, want exactly 1", constructions)
	}
}

func TestManagerFingerprintChangeInvalidatesCache(t *testing.T) {
	var constructions int64
	m := NewManager(testConfig(), countingFactory(&constructions, &fakeCompleter{reply: "OK"}, nil), nil)

	if _, err := m.Get(KindSQL); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := m.CachedKinds(); len(got) != 1 || got[0] != KindSQL {
		t.Fatalf("CachedKinds = %v, want [sql]", got)
	}

	// Same fingerprint: cache survives.
	same := testConfig()
	same.RetryBudget = 5 // not part of the model fingerprint
	m.SetConfig(same)
	if got := m.CachedKinds(); len(got) != 1 {
		t.Fatalf("cache dropped on unchanged fingerprint: %v", got)
	}

	// Changed model: cache reset, next Get rebuilds.
	changed := testConfig()
	changed.ModelName = "model-b"
	m.SetConfig(changed)
	if got := m.CachedKinds(); len(got) != 0 {
		t.Fatalf("stale handles survived fingerprint change: %v", got)
	}

	h, err := m.Get(KindSQL)
	if err != nil {
		t.Fatalf("Get after reconfig failed: %v", err)
	}
	if h.Fingerprint != changed.Fingerprint() {
		t.Fatalf("handle fingerprint = %s, want %s", h.Fingerprint, changed.Fingerprint())
	}
	if constructions != 2 {
		t.Fatalf("constructions = %d, want 2", constructions)
	}
}

func TestManagerHealthCheckNeverThrows(t *testing.T) {
	m := NewManager(testConfig(), func(_ context.Context, kind Kind, _ config.Config) (Completer, error) {
		switch kind {
		case KindRouter:
			return &fakeCompleter{reply: "OK"}, nil
		case KindSQL:
			return &fakeCompleter{err: errors.New("503 service unavailable")}, nil
		default:
			return nil, errors.New("no API key configured")
		}
	}, nil)

	status := m.HealthCheck(context.Background())
	if len(status) != len(Kinds) {
		t.Fatalf("health map covers %d kinds, want %d", len(status), len(Kinds))
	}
	if !status[KindRouter] {
		t.Error("reachable agent reported unhealthy")
	}
	if status[KindSQL] {
		t.Error("erroring agent reported healthy")
	}
	if status[KindChart] {
		t.Error("unbuildable agent reported healthy")
	}
}

func TestManagerGetPropagatesFactoryError(t *testing.T) {
	var constructions int64
	m := NewManager(testConfig(), countingFactory(&constructions, nil, errors.New("bad credentials")), nil)

	if _, err := m.Get(KindSQL); err == nil {
		t.Fatal("Get swallowed the factory error")
	}
	// The failed construction is cached for its fingerprint too.
	if _, err := m.Get(KindSQL); err == nil {
		t.Fatal("second Get swallowed the factory error")
	}
	if constructions != 1 {
		t.Fatalf("constructions = %d, want 1 (failure cached)", constructions)
	}
}
