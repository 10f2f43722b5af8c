package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gritvcs/grit/pkg/repo"
	"golang.org/x/crypto/ssh"
)

// Signature string layout: "sshsig-v1:<format>:<pubkey-b64>:<sig-b64>".
const commitSignaturePrefix = "sshsig-v1"

// newSSHCommitSigner loads an SSH private key and returns a signer closure
// plus the key path actually used. An empty keyPath falls back to the usual
// ~/.ssh identities.
func newSSHCommitSigner(keyPath string) (repo.CommitSigner, string, error) {
	signer, usedPath, err := loadSigningKey(keyPath)
	if err != nil {
		return nil, "", err
	}
	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())

	sign := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", fmt.Errorf("sign commit payload: %w", err)
		}
		return strings.Join([]string{
			commitSignaturePrefix,
			sig.Format,
			pubB64,
			base64.StdEncoding.EncodeToString(sig.Blob),
		}, ":"), nil
	}
	return sign, usedPath, nil
}

// loadSigningKey tries each candidate in order. Missing files are skipped
// only during default-identity discovery; an explicit path must exist.
func loadSigningKey(keyPath string) (ssh.Signer, string, error) {
	candidates, err := signingKeyCandidates(keyPath)
	if err != nil {
		return nil, "", err
	}

	for _, candidate := range candidates {
		raw, err := os.ReadFile(candidate)
		if err != nil {
			if keyPath == "" && os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("read signing key %q: %w", candidate, err)
		}
		signer, err := ssh.ParsePrivateKey(raw)
		if err != nil {
			return nil, "", fmt.Errorf("parse signing key %q: %w", candidate, err)
		}
		return signer, candidate, nil
	}
	return nil, "", fmt.Errorf("no SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa); use --signing-key")
}

// signingKeyCandidates turns a user-supplied path into a single candidate
// (with ~ expanded) or, when empty, the conventional identity files.
func signingKeyCandidates(keyPath string) ([]string, error) {
	keyPath = strings.TrimSpace(keyPath)
	if keyPath != "" {
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("resolve home dir: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		abs, err := filepath.Abs(keyPath)
		if err != nil {
			return nil, fmt.Errorf("resolve signing key path: %w", err)
		}
		return []string{abs}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	var candidates []string
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		candidates = append(candidates, filepath.Join(home, ".ssh", name))
	}
	return candidates, nil
}
