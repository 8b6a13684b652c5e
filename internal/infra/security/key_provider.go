package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrSigningKeyUnavailable = errors.New("signing key not available")
	ErrKeyNotFound           = errors.New("key not found")
)

// KeyProvider supplies the keys identity tokens are signed and verified with.
type KeyProvider interface {
	GetSigningKey() (*rsa.PrivateKey, error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
}

// DirectoryKeyProvider loads PEM encoded RSA keys from a directory. The file name without
// extension is the key id. The first private key found becomes the signing key.
type DirectoryKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKey *rsa.PrivateKey
	signingKID string
}

// NewDirectoryKeyProvider reads every key in keyDir. When requireSigning is set the directory
// must contain at least one private key.
func NewDirectoryKeyProvider(keyDir string, requireSigning bool) (*DirectoryKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &DirectoryKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("decode PEM block from %s", path)
		}
		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		if private, public := parseRSAKey(block.Bytes); private != nil {
			if provider.signingKey == nil {
				provider.signingKey = private
				provider.signingKID = kid
			}
			provider.keys[kid] = &private.PublicKey
		} else if public != nil {
			provider.keys[kid] = public
		} else {
			return nil, fmt.Errorf("parse key from file %s", path)
		}
	}

	if requireSigning && provider.signingKey == nil {
		return nil, fmt.Errorf("%w: no private key in %s", ErrSigningKeyUnavailable, keyDir)
	}

	return provider, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, *rsa.PublicKey) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return nil, key
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return nil, rsaKey
		}
	}
	return nil, nil
}

// GetSigningKey returns the private key used to mint tokens.
func (p *DirectoryKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	if p.signingKey == nil {
		return nil, ErrSigningKeyUnavailable
	}
	return p.signingKey, nil
}

// SigningKeyID returns the kid of the signing key.
func (p *DirectoryKeyProvider) SigningKeyID() string {
	return p.signingKID
}

// GetVerificationKey returns the public key registered under kid.
func (p *DirectoryKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// ListVerificationKeys returns every known public key by kid.
func (p *DirectoryKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// StaticKeyProvider serves a single in-memory key pair. Used when no key directory is
// configured outside production, and in tests.
type StaticKeyProvider struct {
	kid string
	key *rsa.PrivateKey
}

// NewStaticKeyProvider generates a fresh 2048-bit key pair under kid.
func NewStaticKeyProvider(kid string) (*StaticKeyProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &StaticKeyProvider{kid: kid, key: key}, nil
}

// GetSigningKey returns the generated private key.
func (p *StaticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

// SigningKeyID returns the kid the key was registered under.
func (p *StaticKeyProvider) SigningKeyID() string {
	return p.kid
}

// GetVerificationKey returns the public half of the key for the matching kid.
func (p *StaticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}

// ListVerificationKeys returns the single public key.
func (p *StaticKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	return map[string]*rsa.PublicKey{p.kid: &p.key.PublicKey}
}

// NewKeyProvider picks a provider for env. Production only verifies, so the directory may hold
// public keys alone; other environments fall back to a generated key when keyDir is empty.
func NewKeyProvider(env, keyDir string) (KeyProvider, error) {
	keyDir = strings.TrimSpace(keyDir)
	switch env {
	case "production":
		if keyDir == "" {
			return nil, fmt.Errorf("key directory is required in production")
		}
		return NewDirectoryKeyProvider(keyDir, false)
	default:
		if keyDir == "" {
			return NewStaticKeyProvider("dev")
		}
		if _, err := os.Stat(keyDir); errors.Is(err, os.ErrNotExist) {
			return NewStaticKeyProvider("dev")
		}
		return NewDirectoryKeyProvider(keyDir, true)
	}
}
