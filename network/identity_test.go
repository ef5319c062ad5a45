package network

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDataDir(t *testing.T) string {
	dir, err := ioutil.TempDir("", "mothra-network-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestLoadOrGenerateKey_FreshStart(t *testing.T) {
	dir := tempDataDir(t)

	priv, err := loadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.NotNil(t, priv)

	if _, err := os.Stat(dir + "/" + keyFileName); err != nil {
		t.Fatalf("expected key file to be persisted, got: %v", err)
	}
}

func TestLoadOrGenerateKey_WarmRestartIsStable(t *testing.T) {
	dir := tempDataDir(t)

	first, err := loadOrGenerateKey(dir)
	require.NoError(t, err)

	second, err := loadOrGenerateKey(dir)
	require.NoError(t, err)

	assert.Equal(t, first.D, second.D, "restarting with the same data dir must reuse the persisted identity")
}

func TestLoadOrGenerateKey_CorruptFileFallsBackToFresh(t *testing.T) {
	dir := tempDataDir(t)
	require.NoError(t, ioutil.WriteFile(dir+"/"+keyFileName, []byte("not a key"), 0600))

	priv, err := loadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.NotNil(t, priv)
}

func TestConvertToInterfacePrivKey(t *testing.T) {
	dir := tempDataDir(t)
	priv, err := loadOrGenerateKey(dir)
	require.NoError(t, err)

	key, err := convertToInterfacePrivKey(priv)
	require.NoError(t, err)
	assert.NotNil(t, key)
}
