package envvars

import (
	"os"
)

// Environment variable names.
const (
	Environment = "SIDE_QUEST_ENV"
	APIBaseURL  = "SIDE_QUEST_API_URL"
	TokenPath   = "SIDE_QUEST_TOKEN_PATH"
)

const (
	DevEnv        = "development"
	TestEnv       = "test"
	ProductionEnv = "production"
)

type Env struct {
	Environment string
	APIBaseURL  string
	APIVersion  string
	TokenPath   string
}

// BasePath is the version prefix every endpoint hangs off of.
func (e Env) BasePath() string {
	return "/api/" + e.APIVersion
}

var profiles = map[string]Env{
	DevEnv: {
		Environment: DevEnv,
		// Matches the default listen address of the bundled dev server.
		APIBaseURL: "http://localhost:8080",
		APIVersion: "v1",
	},
	TestEnv: {
		Environment: TestEnv,
		APIBaseURL:  "https://test-api.side-quest.example.com",
		APIVersion:  "v1",
	},
	ProductionEnv: {
		Environment: ProductionEnv,
		APIBaseURL:  "https://api.side-quest.example.com",
		APIVersion:  "v1",
	},
}

// GetEnv resolves the active profile. An unset or unknown selector falls
// back to development.
func GetEnv() Env {
	name, ok := os.LookupEnv(Environment)
	if !ok {
		name = DevEnv
	}
	env, ok := profiles[name]
	if !ok {
		env = profiles[DevEnv]
	}
	if base, ok := os.LookupEnv(APIBaseURL); ok && base != "" {
		env.APIBaseURL = base
	}
	if path, ok := os.LookupEnv(TokenPath); ok && path != "" {
		env.TokenPath = path
	}
	return env
}

func IsProd(env Env) bool {
	return env.Environment == ProductionEnv
}

func IsDev(env Env) bool {
	return env.Environment == DevEnv
}
