package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openprocurement/archivarius-bridge/config"
)

func TestValidateConfigRequiresResourcesAPIServer(t *testing.T) {
	err := validateConfig(&config.Config{})
	assert.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "resources_api_server", cfgErr.Field)
}

func TestValidateConfigRejectsSchemelessURL(t *testing.T) {
	err := validateConfig(&config.Config{ResourcesAPIServer: "example.com/api"})
	assert.Error(t, err)
}

func TestValidateConfigAcceptsAbsoluteURL(t *testing.T) {
	err := validateConfig(&config.Config{ResourcesAPIServer: "https://example.com/api"})
	assert.NoError(t, err)
}

func TestIDReturnsStableBridgeIdentifier(t *testing.T) {
	b := &Bridge{id: "fixed-id"}
	assert.Equal(t, "fixed-id", b.ID())
}

func TestNewSecretStoreRejectsUnknownVariant(t *testing.T) {
	_, err := newSecretStore(&config.Config{SecretStorage: "magic"})
	assert.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "secret_storage", cfgErr.Field)
}
