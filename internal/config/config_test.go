package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DEFECT_DOJO_URL", "https://defectdojo.example.com")
	t.Setenv("DEFECT_DOJO_API_KEY", "secret")
	t.Setenv("DEFECT_DOJO_MINIMUM_SEVERITY", "High")
	t.Setenv("DEFECT_DOJO_REQUEST_TIMEOUT", "30s")
	t.Setenv("LABEL", "env")
	t.Setenv("LABEL_VALUE", "prod")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://defectdojo.example.com", cfg.URL)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "env", cfg.Label)
	assert.Equal(t, "prod", cfg.LabelValue)
	assert.Equal(t, "High", cfg.ScanPolicy.MinimumSeverity)

	// Defaults for everything not set explicitly.
	assert.True(t, cfg.InsecureSkipTLSVerify)
	assert.Equal(t, "true", cfg.ScanPolicy.Active)
	assert.Equal(t, "true", cfg.ScanPolicy.Verified)
	assert.Equal(t, "component_name+component_version", cfg.ScanPolicy.GroupBy)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DEFECT_DOJO_URL", "https://defectdojo.example.com")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "DEFECT_DOJO_API_KEY")
}
