package config

import (
	"testing"

	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/store/memory"
)

func TestCreateAdapter_Thread(t *testing.T) {
	cfg := GetDefaultConfig()

	a, err := CreateAdapter(cfg, memory.NewMemoryStore(), nil, filecmd.WorkerCommand{})
	if err != nil {
		t.Fatalf("CreateAdapter failed: %v", err)
	}

	if a.Protocol() != "filecmd" {
		t.Errorf("Expected protocol 'filecmd', got %q", a.Protocol())
	}
	if a.Port() != filecmd.DefaultPort {
		t.Errorf("Expected port %d, got %d", filecmd.DefaultPort, a.Port())
	}
}

func TestCreateAdapter_ThreadRequiresStore(t *testing.T) {
	cfg := GetDefaultConfig()

	if _, err := CreateAdapter(cfg, nil, nil, filecmd.WorkerCommand{}); err == nil {
		t.Fatal("Expected error when the thread discipline has no store")
	}
}

func TestCreateAdapter_UnknownDiscipline(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Adapter.Discipline = "fiber"

	if _, err := CreateAdapter(cfg, memory.NewMemoryStore(), nil, filecmd.WorkerCommand{}); err == nil {
		t.Fatal("Expected error for unknown discipline")
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	result := InitializeMetrics(cfg)
	if result.Server != nil {
		t.Error("Expected no metrics server when metrics are disabled")
	}
	if result.ServerMetrics == nil {
		t.Error("Expected no-op server metrics when metrics are disabled")
	}
	if result.CacheMetrics != nil {
		t.Error("Expected nil cache metrics when metrics are disabled")
	}
}
