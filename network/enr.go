package network

import (
	"crypto/ecdsa"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"
)

// ENR field keys. eth2ENRKey carries the opaque fork identifier supplied by
// the host; attnetsENRKey carries the attestation-subnet bit vector. Both
// are application fields this package treats as opaque byte strings.
const (
	eth2ENRKey    = "eth2"
	attnetsENRKey = "attnets"
	enrFileName   = "enr"
)

// BuildENR implements the ENR lifecycle's build operation: a fresh record
// at sequence 1, signed with priv.
func BuildENR(priv *ecdsa.PrivateKey, cfg *Config, forkID []byte) (*enode.Node, error) {
	return buildENR(priv, cfg, forkID, 1)
}

func buildENR(priv *ecdsa.PrivateKey, cfg *Config, forkID []byte, seq uint64) (*enode.Node, error) {
	var r enr.Record
	if cfg.ENRAddress != nil {
		r.Set(enr.IPv4(cfg.ENRAddress.To4()))
	}
	if cfg.ENRUDPPort != 0 {
		r.Set(enr.UDP(uint16(cfg.ENRUDPPort)))
	}
	r.Set(enr.TCP(uint16(cfg.TCPPort())))
	r.Set(enr.WithEntry(eth2ENRKey, forkID))
	r.Set(enr.WithEntry(attnetsENRKey, []byte(bitfield.NewBitvector64())))
	r.SetSeq(seq)

	if err := enr.SignV4(&r, priv); err != nil {
		return nil, errors.Wrap(err, "could not sign ENR")
	}
	node, err := enode.New(enode.ValidSchemes, &r)
	if err != nil {
		return nil, errors.Wrap(err, "could not build node record")
	}
	return node, nil
}

// BuildOrLoadENR implements the ENR lifecycle's build_or_load operation
// (spec.md §4.B). It never returns an error for disk problems; the only
// fatal case is a sequence number that would overflow on bump.
func BuildOrLoadENR(priv *ecdsa.PrivateKey, cfg *Config, forkID []byte) (*enode.Node, error) {
	local, err := BuildENR(priv, cfg, forkID)
	if err != nil {
		return nil, err
	}

	enrPath := filepath.Join(cfg.DataDir, enrFileName)
	raw, err := ioutil.ReadFile(enrPath)
	if err != nil {
		log.WithError(err).Debug("Could not read ENR from disk")
		persistENR(cfg.DataDir, local)
		return local, nil
	}

	disk, err := enode.Parse(enode.ValidSchemes, strings.TrimSpace(string(raw)))
	if err != nil {
		log.WithError(err).Warn("ENR from file could not be decoded")
		persistENR(cfg.DataDir, local)
		return local, nil
	}

	if local.ID() == disk.ID() {
		if equivalentENR(local, disk) {
			log.WithField("file", enrPath).Debug("ENR loaded from disk")
			return disk, nil
		}

		newSeq, ok := addSeq(disk.Record().Seq(), 1)
		if !ok {
			return nil, ErrSeqOverflow
		}
		local, err = buildENR(priv, cfg, forkID, newSeq)
		if err != nil {
			return nil, err
		}
		log.WithField("seq", newSeq).Debug("ENR sequence number increased")
	}

	persistENR(cfg.DataDir, local)
	return local, nil
}

// equivalentENR implements the equivalence predicate of spec.md §4.B: two
// records with the same node-id are interchangeable when every
// observable field either matches or is unspecified locally.
func equivalentENR(local, disk *enode.Node) bool {
	if local.IP() != nil && !local.IP().Equal(disk.IP()) {
		return false
	}
	if local.TCP() != disk.TCP() {
		return false
	}
	localEth2, err := loadBytesEntry(local.Record(), eth2ENRKey)
	if err != nil {
		return false
	}
	diskEth2, err := loadBytesEntry(disk.Record(), eth2ENRKey)
	if err != nil || string(localEth2) != string(diskEth2) {
		return false
	}
	if local.UDP() != 0 && local.UDP() != disk.UDP() {
		return false
	}
	localAttnets, err := loadBytesEntry(local.Record(), attnetsENRKey)
	if err != nil {
		return false
	}
	diskAttnets, err := loadBytesEntry(disk.Record(), attnetsENRKey)
	if err != nil || string(localAttnets) != string(diskAttnets) {
		return false
	}
	return true
}

func loadBytesEntry(r *enr.Record, key string) ([]byte, error) {
	var out []byte
	if err := r.Load(enr.WithEntry(key, &out)); err != nil {
		return nil, err
	}
	return out, nil
}

func addSeq(seq, delta uint64) (uint64, bool) {
	if seq > math.MaxUint64-delta {
		return 0, false
	}
	return seq + delta, true
}

// persistENR writes node base64-encoded (as its standard "enr:" textual
// form) to <dataDir>/enr. Write failures are logged, never fatal.
func persistENR(dataDir string, node *enode.Node) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		log.WithError(err).Warn("Could not create data directory for ENR")
		return
	}
	enrPath := filepath.Join(dataDir, enrFileName)
	if err := ioutil.WriteFile(enrPath, []byte(node.String()), 0644); err != nil {
		log.WithError(err).WithField("file", enrPath).Warn("Could not write ENR to disk")
		return
	}
	log.WithField("file", enrPath).Debug("ENR written to disk")
}
