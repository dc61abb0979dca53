// Package config reads process-level settings from the environment. Per-app
// configuration lives in the YAML file named by APPS_CONFIG and is loaded by
// the apps package.
package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar        = "PORT"
	appNameEnvVar     = "APP_NAME"
	appsConfigEnvVar  = "APPS_CONFIG"
	skipOriginsEnvVar = "SKIP_ORIGIN_CHECK"
	envEnvVar         = "ENV"
)

// EnvVars reads configuration from environment variables.
type EnvVars struct{}

// GetPort returns the listen address, always with a leading colon.
func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

// GetAppName returns the display name used in the startup banner.
func (EnvVars) GetAppName() string {
	return GetEnv(appNameEnvVar, "Lomasi")
}

// GetAppsConfigPath returns the path of the YAML apps file.
func (EnvVars) GetAppsConfigPath() string {
	return GetEnv(appsConfigEnvVar, "./apps.yaml")
}

// GetSkipOriginCheck reports whether origin checking is globally disabled.
// Test/dev convenience only.
func (EnvVars) GetSkipOriginCheck() bool {
	return GetEnv(skipOriginsEnvVar, "") == "true"
}

// GetEnv returns the deployment environment name.
func (EnvVars) GetEnv() string {
	return GetEnv(envEnvVar, "DEV")
}

// GetEnv reads an environment variable with a fallback.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
