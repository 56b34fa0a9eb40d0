package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "wildfire", DBName: "wildfire"},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
		Valkey:   ValkeyConfig{Addr: "localhost:6379"},
		Source: SourceConfig{
			EONETURL:      "https://eonet.gsfc.nasa.gov/api/v3",
			Category:      "wildfires",
			PollInterval:  time.Minute,
			RatePerSecond: 1,
		},
		Cluster: ClusterConfig{MaxZoom: 16, MinPoints: 2, Radius: 60, Extent: 512, NodeMin: 25, NodeMax: 50},
		Index:   IndexConfig{RebuildDebounce: 2 * time.Second},
		Map:     MapConfig{CenterLat: 42.3265, CenterLng: -122.8756, Zoom: 6},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Cluster.MaxZoom = -1
	cfg.Source.Category = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "cluster zoom range", "source.category"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %q", want, err.Error())
		}
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WILDFIRE_SERVER_PORT", "9090")
	t.Setenv("WILDFIRE_SOURCE_CATEGORY", "volcanoes")

	cfg, err := Load("wildfire-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Source.Category != "volcanoes" {
		t.Errorf("expected volcanoes, got %s", cfg.Source.Category)
	}
	if cfg.Index.RebuildDebounce != 2*time.Second {
		t.Errorf("expected 2s debounce, got %s", cfg.Index.RebuildDebounce)
	}
	if cfg.Map.Zoom != 6 {
		t.Errorf("expected default zoom 6, got %d", cfg.Map.Zoom)
	}
}
