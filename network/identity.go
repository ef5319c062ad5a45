package network

import (
	"crypto/ecdsa"
	"io/ioutil"
	"os"
	"path/filepath"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	libp2pcrypto "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/pkg/errors"
)

// keyFileName is the name of the persisted secp256k1 secret under DataDir.
const keyFileName = "key"

// LoadOrGenerateIdentity is the exported entry point for the Identity
// Store's load_or_generate operation (spec.md §4.A): a host-facing
// package calls this once at startup to obtain the long-lived keypair
// that backs both the node record and the swarm host identity.
func LoadOrGenerateIdentity(dataDir string) (*ecdsa.PrivateKey, error) {
	return loadOrGenerateKey(dataDir)
}

// loadOrGenerateKey implements the Identity Store's load_or_generate
// operation. A missing, unreadable or malformed key file only costs a
// fresh identity, never aborts startup; the one error it returns is
// ErrIdentityUnavailable, when generating a fresh key fails.
func loadOrGenerateKey(dataDir string) (*ecdsa.PrivateKey, error) {
	keyPath := filepath.Join(dataDir, keyFileName)

	if raw, err := ioutil.ReadFile(keyPath); err != nil {
		log.WithError(err).Debug("Could not read node key file, generating a new one")
	} else if priv, err := gethcrypto.ToECDSA(raw); err != nil {
		log.WithError(err).Debug("Node key file did not contain a valid secp256k1 key, generating a new one")
	} else {
		log.Debug("Loaded node key from disk")
		return priv, nil
	}

	priv, err := gethcrypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrapf(ErrIdentityUnavailable, "could not generate node key: %v", err)
	}

	saveKeyToDisk(dataDir, priv)
	return priv, nil
}

// saveKeyToDisk is best-effort: a write failure is logged and the node
// simply regenerates its identity on the next start.
func saveKeyToDisk(dataDir string, priv *ecdsa.PrivateKey) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		log.WithError(err).Warn("Could not create data directory for node key")
		return
	}
	keyPath := filepath.Join(dataDir, keyFileName)
	if err := ioutil.WriteFile(keyPath, gethcrypto.FromECDSA(priv), 0600); err != nil {
		log.WithError(err).Warn("Could not write node key to disk")
		return
	}
	log.Debug("New node key generated and written to disk")
}

// convertToInterfacePrivKey converts a go-ethereum secp256k1 key, used for
// signing the ENR, into the libp2p-core key interface used to identify the
// swarm host. Both wrap the exact same 32-byte secret.
func convertToInterfacePrivKey(priv *ecdsa.PrivateKey) (libp2pcrypto.PrivKey, error) {
	privBytes := gethcrypto.FromECDSA(priv)
	key, err := libp2pcrypto.UnmarshalSecp256k1PrivateKey(privBytes)
	if err != nil {
		return nil, errors.Wrap(err, "could not convert node key to libp2p identity")
	}
	return key, nil
}
