package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidKeyHash is returned for hashes not in the argon2id PHC format.
	ErrInvalidKeyHash = errors.New("invalid operator key hash format")
	// ErrIncompatibleKeyVersion is returned for hashes from another argon2 version.
	ErrIncompatibleKeyVersion = errors.New("incompatible operator key hash version")
)

// Argon2idParams configures operator key hashing.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams is used by the hash-key command.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// HashOperatorKey encodes key as $argon2id$v=19$m=...,t=...,p=...$salt$hash.
func HashOperatorKey(key string, params Argon2idParams) (string, error) {
	if key == "" {
		return "", errors.New("operator key must not be empty")
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyOperatorKey checks key against an encoded hash. A mismatch yields
// ErrUnauthorized.
func VerifyOperatorKey(encoded, key string) error {
	params, salt, want, err := decodeOperatorKeyHash(encoded)
	if err != nil {
		return err
	}
	got := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(want, got) == 1 {
		return nil
	}
	return ErrUnauthorized
}

// IsOperatorKeyHash reports whether value looks like an encoded hash rather
// than a plain key.
func IsOperatorKeyHash(value string) bool {
	_, _, _, err := decodeOperatorKeyHash(value)
	return err == nil
}

func decodeOperatorKeyHash(encoded string) (params Argon2idParams, salt, hash []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		err = ErrInvalidKeyHash
		return
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		err = ErrInvalidKeyHash
		return
	}
	if version != argon2.Version {
		err = ErrIncompatibleKeyVersion
		return
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		err = ErrInvalidKeyHash
		return
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		err = ErrInvalidKeyHash
		return
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		err = ErrInvalidKeyHash
		return
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(hash))
	return
}
