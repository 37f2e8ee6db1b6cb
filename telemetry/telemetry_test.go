package telemetry

import (
	"testing"
	"time"

	"github.com/amp-labs/amp-resilience/envutil"
	"github.com/amp-labs/amp-resilience/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hermetic pins every variable LoadConfigFromEnv reads so the host
// environment cannot leak into a test.
func hermetic(t *testing.T, overrides map[string]string) map[string]string {
	t.Helper()

	vars := map[string]string{
		"KUBERNETES_SERVICE_HOST": "",
		"OTEL_ENABLED":            "false",
		"OTEL_LOGS_ENABLED":       "false",
	}

	for k, v := range overrides {
		vars[k] = v
	}

	return vars
}

func TestLoadConfigFromEnv_GKEDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		kubernetesHost   string
		customEndpoint   string
		expectedEndpoint string
	}{
		{
			name:             "GKE environment detected",
			kubernetesHost:   "10.0.0.1",
			expectedEndpoint: gkeCollectorEndpoint,
		},
		{
			name:             "Non-GKE environment",
			expectedEndpoint: "",
		},
		{
			name:             "Custom endpoint overrides GKE default",
			kubernetesHost:   "10.0.0.1",
			customEndpoint:   "http://custom-collector:4318",
			expectedEndpoint: "http://custom-collector:4318",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			vars := hermetic(t, map[string]string{"KUBERNETES_SERVICE_HOST": test.kubernetesHost})
			if test.customEndpoint != "" {
				vars["OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"] = test.customEndpoint
			}

			config, err := LoadConfigFromEnv(envutil.WithEnvOverrides(t.Context(), vars), "dev")
			require.NoError(t, err)

			assert.Equal(t, test.expectedEndpoint, config.Endpoint)
		})
	}
}

func TestLoadConfigFromEnv_DefaultValues(t *testing.T) {
	t.Parallel()

	ctx := logger.WithSubsystem(t.Context(), "payments-worker")
	ctx = envutil.WithEnvOverrides(ctx, hermetic(t, nil))

	config, err := LoadConfigFromEnv(ctx, "test")
	require.NoError(t, err)

	assert.False(t, config.Enabled)
	assert.False(t, config.LogsEnabled)
	assert.Equal(t, "payments-worker", config.ServiceName)
	assert.Equal(t, defaultServiceVersion, config.ServiceVersion)
	assert.Equal(t, "test", config.Environment)
	assert.Equal(t, defaultTimeout, config.Timeout)
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Parallel()

	ctx := envutil.WithEnvOverrides(t.Context(), hermetic(t, map[string]string{
		"OTEL_ENABLED":                       "true",
		"OTEL_LOGS_ENABLED":                  "true",
		"OTEL_SERVICE_NAME":                  "checkout",
		"OTEL_SERVICE_VERSION":               "2.3.4",
		"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "http://traces:4318",
		"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT":   "http://logs:4318",
		"OTEL_EXPORTER_OTLP_TIMEOUT":         "2s",
	}))

	config, err := LoadConfigFromEnv(ctx, "prod")
	require.NoError(t, err)

	assert.Equal(t, &Config{
		ServiceName:    "checkout",
		ServiceVersion: "2.3.4",
		Environment:    "prod",
		Endpoint:       "http://traces:4318",
		LogsEndpoint:   "http://logs:4318",
		Enabled:        true,
		LogsEnabled:    true,
		Timeout:        2 * time.Second,
	}, config)
}

func TestLoadConfigFromEnv_BadTimeout(t *testing.T) {
	t.Parallel()

	ctx := envutil.WithEnvOverrides(t.Context(), hermetic(t, map[string]string{
		"OTEL_EXPORTER_OTLP_TIMEOUT": "whenever",
	}))

	_, err := LoadConfigFromEnv(ctx, "dev")
	require.ErrorIs(t, err, envutil.ErrBadEnvVar)
}

func TestInitializeDisabled(t *testing.T) {
	t.Parallel()

	require.NoError(t, Initialize(t.Context(), &Config{Enabled: false}))
	require.NoError(t, Initialize(t.Context(), &Config{Enabled: true}))
	assert.Nil(t, LoggerProvider())
	require.NoError(t, Shutdown(t.Context()))
}
