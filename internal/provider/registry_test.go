// internal/provider/registry_test.go

package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numbay/numbay-backend/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		VendorTimeout:      time.Second,
		AllocateProbeDelay: time.Millisecond,
	}
}

func TestRegistryGetUnknownVendor(t *testing.T) {
	reg := NewRegistry(testConfig())

	_, err := reg.Get("nosuchvendor")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryGetCredentialsMissing(t *testing.T) {
	reg := NewRegistry(testConfig())

	_, err := reg.Get(VendorSMSActivate)
	assert.ErrorIs(t, err, ErrCredentialsMissing)

	_, err = reg.Get(VendorFiveSim)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestRegistryGetCachesAdapter(t *testing.T) {
	cfg := testConfig()
	cfg.FiveSimAPIKey = "token"
	reg := NewRegistry(cfg)

	first, err := reg.Get(VendorFiveSim)
	require.NoError(t, err)

	second, err := reg.Get(VendorFiveSim)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRegistryCurrentUsesFallbackOrder(t *testing.T) {
	cfg := testConfig()
	cfg.FiveSimAPIKey = "token"
	reg := NewRegistry(cfg)

	adapter, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, VendorFiveSim, adapter.ID())
}

func TestRegistryCurrentPrefersSMSActivate(t *testing.T) {
	cfg := testConfig()
	cfg.SMSActivateAPIKey = "key"
	cfg.FiveSimAPIKey = "token"
	reg := NewRegistry(cfg)

	adapter, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, VendorSMSActivate, adapter.ID())
}

func TestRegistryCurrentNoneConfigured(t *testing.T) {
	reg := NewRegistry(testConfig())

	_, err := reg.Current()
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestRegistryFallbackNeverPicksMock(t *testing.T) {
	cfg := testConfig()
	cfg.EnableMockVendor = true
	reg := NewRegistry(cfg)

	// Mock is configured but must never win fallback selection
	_, err := reg.Current()
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestRegistrySelect(t *testing.T) {
	cfg := testConfig()
	cfg.EnableMockVendor = true
	cfg.FiveSimAPIKey = "token"
	reg := NewRegistry(cfg)

	require.NoError(t, reg.Select(VendorMock))

	adapter, err := reg.Current()
	require.NoError(t, err)
	assert.Equal(t, VendorMock, adapter.ID())

	// Explicit selection overrides the fallback order
	require.NoError(t, reg.Select(VendorFiveSim))
	adapter, err = reg.Current()
	require.NoError(t, err)
	assert.Equal(t, VendorFiveSim, adapter.ID())
}

func TestRegistrySelectUnconfiguredFails(t *testing.T) {
	reg := NewRegistry(testConfig())

	err := reg.Select(VendorTwilio)
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestRegistryStatusWithoutNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.SMSActivateAPIKey = "key"
	reg := NewRegistry(cfg)

	status, err := reg.Status(VendorSMSActivate)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.False(t, status.Selected)

	status, err = reg.Status(VendorFiveSim)
	require.NoError(t, err)
	assert.False(t, status.Configured)

	_, err = reg.Status("nosuchvendor")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryListHidesMockWhenDisabled(t *testing.T) {
	reg := NewRegistry(testConfig())

	ids := make([]string, 0)
	for _, status := range reg.List() {
		ids = append(ids, status.ID)
	}
	assert.Equal(t, []string{VendorSMSActivate, VendorFiveSim, VendorTwilio}, ids)

	cfg := testConfig()
	cfg.EnableMockVendor = true
	reg = NewRegistry(cfg)
	assert.Len(t, reg.List(), 4)
}
