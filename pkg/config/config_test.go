package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hollowlog/magpie/business/entity"
)

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, entity.DefaultServerConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0664); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "Rest:\n  port: 9000\n")
	t.Setenv("MAGPIE_CONFIG", filepath.Join(dir, entity.DefaultServerConfigFileName))

	cfg := &entity.ServerConfig{}
	if _, err := New(entity.DefaultServerConfigFileName, dir, cfg); err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if cfg.Rest.Port != 9000 {
		t.Errorf("Rest.Port = %d, expected the file value 9000", cfg.Rest.Port)
	}
	if cfg.Rest.Host != "localhost" {
		t.Errorf("Rest.Host = %q, expected the default", cfg.Rest.Host)
	}
	if cfg.Intake.MaxHighPriorityFiles != 10 || cfg.Intake.MaxMediumPriorityFiles != 5 {
		t.Errorf("intake limits = %d/%d, expected defaults 10/5",
			cfg.Intake.MaxHighPriorityFiles, cfg.Intake.MaxMediumPriorityFiles)
	}
	if cfg.Intake.MaxContentLength != 3000 {
		t.Errorf("MaxContentLength = %d, expected default 3000", cfg.Intake.MaxContentLength)
	}
	if *cfg.Logger.DisableSampling != true {
		t.Error("Logger.DisableSampling default not applied")
	}
}

func TestAddObserver(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "Intake:\n  maxHighPriorityFiles: 10\n")
	t.Setenv("MAGPIE_CONFIG", path)

	cfg := &entity.ServerConfig{}
	c, err := New(entity.DefaultServerConfigFileName, dir, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	notified := make(chan interface{}, 1)
	err = c.AddObserver(func(data interface{}) {
		select {
		case notified <- data:
		default:
		}
	})
	if err != nil {
		t.Fatalf("AddObserver() failed: %v", err)
	}

	// the watcher polls once a second; let it take its first snapshot
	time.Sleep(2 * time.Second)
	writeConfigFile(t, dir, "Intake:\n  maxHighPriorityFiles: 3\n")

	select {
	case data := <-notified:
		got, ok := data.(*entity.ServerConfig)
		if !ok {
			t.Fatalf("observer got %T, expected *entity.ServerConfig", data)
		}
		if got.Intake.MaxHighPriorityFiles != 3 {
			t.Errorf("MaxHighPriorityFiles = %d, expected the reloaded value 3",
				got.Intake.MaxHighPriorityFiles)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("observer not notified after config file change")
	}
}
