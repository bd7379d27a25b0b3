package config

import (
	"path/filepath"
	"testing"
)

func TestGetHome_EnvVar(t *testing.T) {
	ResetHome()
	t.Setenv("SHOPLIST_E2E_HOME", "/custom/path")

	if got := GetHome(); got != "/custom/path" {
		t.Errorf("GetHome() = %q, want %q", got, "/custom/path")
	}
}

func TestGetHome_FallbackNotEmpty(t *testing.T) {
	ResetHome()
	t.Setenv("SHOPLIST_E2E_HOME", "")

	if got := GetHome(); got == "" {
		t.Error("GetHome() returned empty string")
	}
}

func TestGetHome_Cached(t *testing.T) {
	ResetHome()
	t.Setenv("SHOPLIST_E2E_HOME", "/first")
	first := GetHome()

	t.Setenv("SHOPLIST_E2E_HOME", "/second")
	second := GetHome()

	if first != second {
		t.Errorf("GetHome() not cached: first=%q, second=%q", first, second)
	}
}

func TestAppPath_RelativeResolvesAgainstHome(t *testing.T) {
	ResetHome()
	defer ResetHome()
	t.Setenv("SHOPLIST_E2E_HOME", "/work")

	cfg := Default()
	want := filepath.Join("/work", "flutter", "my_app", "build", "app", "outputs", "flutter-apk", "app-debug.apk")
	if got := cfg.AppPath(); got != want {
		t.Errorf("AppPath() = %q, want %q", got, want)
	}

	cfg.App.Path = "/abs/app.apk"
	if got := cfg.AppPath(); got != "/abs/app.apk" {
		t.Errorf("AppPath() = %q, want absolute path unchanged", got)
	}
}
