package backend

import (
	"context"
	"path/filepath"
	"testing"

	"rentbook/internal/config"
	"rentbook/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "file", DataDir: "/srv/rentbook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Type != FileBackend || cfg.DataDirectory != "/srv/rentbook" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestCreateBackend(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"file", Config{Type: FileBackend, DataDirectory: filepath.Join(dir, "files")}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "rentbook.db")}, false},
		{"file without directory", Config{Type: FileBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}

	f := NewFactory(log.Discard())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := f.CreateBackend(ctx, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if res.Cleanup != nil {
				defer res.Cleanup()
			}
			if err := res.Store.Put(ctx, "settings", []byte(`{}`)); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, ok, err := res.Store.Get(ctx, "settings"); !ok || err != nil {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 3 || got[0] != "memory" || got[1] != "file" || got[2] != "sqlite" {
		t.Fatalf("unexpected types: %v", got)
	}
}
