// Copyright 2025 ZKIPS Chain Contributors
//
// Package selector draws the next epoch's validator committee: an
// independent stake/performance/identity-weighted inclusion test per
// validator, driven by a deterministic ChaCha20 stream so the selected set
// is a pure function of (validator set state, seed).
package selector

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"

	"github.com/zkipschain/zkips/pkg/validator"
	"github.com/zkipschain/zkips/pkg/zkerrors"
)

// MaxAttempts bounds the perturbed-seed retry loop: increment a u32 salt
// and rehash, give up after this many tries.
const MaxAttempts = 8

// Config carries the parameters that shape selection, mirrored from the
// node's global configuration.
type Config struct {
	MinValidators       int
	SelectionThreshold  float64
}

// Select draws the next committee from current, seeded deterministically
// by seed. On an undersized result it retries with an incremented u32 salt
// folded into the seed, up to MaxAttempts times, before returning a
// SelectionError.
func Select(current *validator.Set, seed []byte, cfg Config) (*validator.Set, error) {
	members := current.Members()
	sort.Slice(members, func(i, j int) bool {
		return string(members[i].ID) < string(members[j].ID)
	})

	var lastSelected int
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		attemptSeed := perturbSeed(seed, uint32(attempt))
		selected, err := drawOnce(members, current.TotalStake(), attemptSeed, cfg.SelectionThreshold)
		if err != nil {
			return nil, err
		}
		lastSelected = selected.Len()
		if lastSelected >= cfg.MinValidators {
			return selected, nil
		}
	}

	return nil, &zkerrors.SelectionError{
		Attempts: MaxAttempts,
		Selected: lastSelected,
		Needed:   cfg.MinValidators,
	}
}

// perturbSeed derives attempt N's seed as SHA3-256(seed || LE32(salt)).
func perturbSeed(seed []byte, salt uint32) []byte {
	var saltBytes [4]byte
	binary.LittleEndian.PutUint32(saltBytes[:], salt)
	h := sha3.New256()
	h.Write(seed)
	h.Write(saltBytes[:])
	return h.Sum(nil)
}

// drawOnce performs one independent-inclusion pass over members using a
// ChaCha20 stream keyed by seed.
func drawOnce(members []*validator.Validator, totalStake uint64, seed []byte, threshold float64) (*validator.Set, error) {
	stream, err := newStream(seed)
	if err != nil {
		return nil, zkerrors.NewCryptoError(zkerrors.CryptoParameter, "selector stream init", err)
	}

	selected := validator.NewSet()
	for _, v := range members {
		p := probability(v, totalStake, threshold)
		draw := nextUnitFloat(stream)
		if draw < p {
			// Capacity is unbounded here and no max_validators cap is applied
			// after selection; the result is a subset of current.
			if addErr := selected.Add(v.Clone(), 0); addErr != nil {
				return nil, addErr
			}
		}
	}
	return selected, nil
}

// probability computes p_i = min(stake_weight * performance_weight *
// identity_weight, selection_threshold) for validator v.
func probability(v *validator.Validator, totalStake uint64, threshold float64) float64 {
	if totalStake == 0 {
		return 0
	}
	stakeWeight := float64(v.Stake) / float64(totalStake)
	performanceWeight := v.Performance.Uptime
	identityWeight := identityWeight(v.IdentityCommitment.ToBytesLE())

	p := stakeWeight * performanceWeight * identityWeight
	if p > threshold {
		return threshold
	}
	return p
}

// identityWeight maps a commitment to [0, 1) via
// H_to_u64(SHA3-256(serialize(commitment))) / 2^64.
func identityWeight(commitment []byte) float64 {
	h := sha3.Sum256(commitment)
	v := binary.LittleEndian.Uint64(h[:8])
	return float64(v) / (float64(1) << 64)
}

func newStream(seed []byte) (*chacha20.Cipher, error) {
	var key [chacha20.KeySize]byte
	h := sha3.Sum256(seed)
	copy(key[:], h[:])
	var nonce [chacha20.NonceSize]byte
	return chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
}

// nextUnitFloat draws 8 bytes from the stream and maps them to [0, 1).
func nextUnitFloat(stream *chacha20.Cipher) float64 {
	var buf [8]byte
	stream.XORKeyStream(buf[:], buf[:])
	v := binary.LittleEndian.Uint64(buf[:])
	return float64(v) / (float64(1) << 64)
}
