package envvars

import (
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Run("defaults to development", func(t *testing.T) {
		t.Setenv(Environment, "")
		got := GetEnv()
		if got.Environment != DevEnv {
			t.Errorf("Expected environment to default to development, got %s", got.Environment)
		}
		if got.APIBaseURL != "http://localhost:8080" {
			t.Errorf("unexpected dev base URL: %s", got.APIBaseURL)
		}
	})

	t.Run("unknown selector falls back to development", func(t *testing.T) {
		t.Setenv(Environment, "staging")
		if got := GetEnv(); got.Environment != DevEnv {
			t.Errorf("Expected fallback to development, got %s", got.Environment)
		}
	})

	t.Run("production profile", func(t *testing.T) {
		t.Setenv(Environment, ProductionEnv)
		got := GetEnv()
		if got.Environment != ProductionEnv {
			t.Errorf("Expected production, got %s", got.Environment)
		}
		if got.APIBaseURL != "https://api.side-quest.example.com" {
			t.Errorf("unexpected production base URL: %s", got.APIBaseURL)
		}
	})

	t.Run("base URL override", func(t *testing.T) {
		t.Setenv(Environment, TestEnv)
		t.Setenv(APIBaseURL, "http://127.0.0.1:9999")
		got := GetEnv()
		if got.APIBaseURL != "http://127.0.0.1:9999" {
			t.Errorf("Expected override to win, got %s", got.APIBaseURL)
		}
	})

	t.Run("token path override", func(t *testing.T) {
		t.Setenv(TokenPath, "/tmp/side-quest-token")
		got := GetEnv()
		if got.TokenPath != "/tmp/side-quest-token" {
			t.Errorf("Expected token path override, got %s", got.TokenPath)
		}
	})
}

func TestBasePath(t *testing.T) {
	env := Env{APIVersion: "v1"}
	if got := env.BasePath(); got != "/api/v1" {
		t.Errorf("BasePath() = %s, want /api/v1", got)
	}
}

func TestIsProd(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		want bool
	}{
		{"production env", Env{Environment: ProductionEnv}, true},
		{"development env", Env{Environment: DevEnv}, false},
		{"test env", Env{Environment: TestEnv}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProd(tt.env); got != tt.want {
				t.Errorf("IsProd() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDev(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		want bool
	}{
		{"development env", Env{Environment: DevEnv}, true},
		{"production env", Env{Environment: ProductionEnv}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDev(tt.env); got != tt.want {
				t.Errorf("IsDev() = %v, want %v", got, tt.want)
			}
		})
	}
}
