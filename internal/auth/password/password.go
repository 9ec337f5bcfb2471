// Package password stores portal account credentials as Argon2id hashes in
// the PHC string format and enforces the signup strength rules.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	// MinLength and MaxLength bound accepted passwords in runes.
	MinLength = 8
	MaxLength = 128

	saltLen = 16
	scheme  = "argon2id"
)

var (
	ErrTooShort  = errors.New("password too short")
	ErrTooLong   = errors.New("password too long")
	ErrMalformed = errors.New("malformed password hash")
)

// Params are the Argon2id cost settings written into every hash.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

// Default is what new hashes use. Stored hashes with other costs still
// verify and report NeedsRehash.
var Default = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

// CheckStrength applies the signup length rules. Surrounding whitespace
// does not count toward the minimum.
func CheckStrength(password string) error {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < MinLength {
		return ErrTooShort
	}
	if utf8.RuneCountInString(password) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Hash returns an encoded hash with a random salt using Default.
func Hash(password string) (string, error) {
	return Default.Hash(password)
}

func (p Params) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return encoded{params: p, salt: salt, key: key}.String(), nil
}

// Verify reports whether password matches the stored hash.
func Verify(password, stored string) bool {
	enc, err := decode(stored)
	if err != nil {
		return false
	}
	p := enc.params
	check := argon2.IDKey([]byte(password), enc.salt, p.Time, p.Memory, p.Threads, uint32(len(enc.key)))
	return subtle.ConstantTimeCompare(enc.key, check) == 1
}

// NeedsRehash reports whether stored was produced with costs other than
// Default and should be replaced after the next successful login.
func NeedsRehash(stored string) bool {
	enc, err := decode(stored)
	if err != nil {
		return true
	}
	return enc.params != Default
}

type encoded struct {
	params Params
	salt   []byte
	key    []byte
}

func (e encoded) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		scheme, argon2.Version,
		e.params.Memory, e.params.Time, e.params.Threads,
		base64.RawStdEncoding.EncodeToString(e.salt),
		base64.RawStdEncoding.EncodeToString(e.key),
	)
}

func decode(stored string) (encoded, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != scheme {
		return encoded{}, ErrMalformed
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return encoded{}, ErrMalformed
	}

	var enc encoded
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &enc.params.Memory, &enc.params.Time, &enc.params.Threads); err != nil {
		return encoded{}, ErrMalformed
	}
	if enc.params.Time == 0 || enc.params.Memory == 0 || enc.params.Threads == 0 {
		return encoded{}, ErrMalformed
	}

	var err error
	if enc.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return encoded{}, ErrMalformed
	}
	if enc.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(enc.key) == 0 {
		return encoded{}, ErrMalformed
	}
	enc.params.KeyLen = uint32(len(enc.key))
	return enc, nil
}
