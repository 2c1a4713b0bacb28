// Package push manages web-push subscriptions and signal notification
// dispatch.
package push

import (
	"fmt"
	"os"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"signalboard/pkg/logger"
)

// Default key file locations, used when no keys come from the environment.
const (
	PrivateKeyFile = "vapid_private_key.txt"
	PublicKeyFile  = "vapid_public_key.txt"
)

// VAPIDKeys identifies this server to push services. Keys are url-safe
// base64 without padding, as handed to subscribers.
type VAPIDKeys struct {
	Subject    string
	PublicKey  string
	PrivateKey string
}

// EnsureVAPIDKeys resolves the server key pair: environment first, then key
// files, else a fresh pair is generated and persisted for the next run.
func EnsureVAPIDKeys(subject, publicEnv, privateEnv string) (*VAPIDKeys, error) {
	if publicEnv != "" && privateEnv != "" {
		return &VAPIDKeys{Subject: subject, PublicKey: publicEnv, PrivateKey: privateEnv}, nil
	}

	priv, errPriv := os.ReadFile(PrivateKeyFile)
	pub, errPub := os.ReadFile(PublicKeyFile)
	if errPriv == nil && errPub == nil {
		return &VAPIDKeys{
			Subject:    subject,
			PublicKey:  strings.TrimSpace(string(pub)),
			PrivateKey: strings.TrimSpace(string(priv)),
		}, nil
	}

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to generate VAPID keys: %w", err)
	}

	if err := os.WriteFile(PrivateKeyFile, []byte(privateKey), 0o600); err != nil {
		return nil, fmt.Errorf("failed to persist VAPID private key: %w", err)
	}
	if err := os.WriteFile(PublicKeyFile, []byte(publicKey), 0o644); err != nil {
		return nil, fmt.Errorf("failed to persist VAPID public key: %w", err)
	}

	logger.Info("Generated new VAPID key pair",
		zap.String("private_file", PrivateKeyFile),
		zap.String("public_file", PublicKeyFile))

	return &VAPIDKeys{Subject: subject, PublicKey: publicKey, PrivateKey: privateKey}, nil
}
