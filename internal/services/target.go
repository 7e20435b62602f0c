package services

import (
	"time"

	"domainpanel/internal/apperr"
	"domainpanel/internal/crypto"
	"domainpanel/internal/models"
)

// BuildTarget turns a stored server into a connectable Target, decrypting
// whichever credential its auth type needs.
func BuildTarget(server *models.Server, enc *crypto.Encryptor, connectTimeout time.Duration) (*Target, error) {
	target := Target{
		Host:           server.Host,
		Port:           server.Port,
		Username:       server.Username,
		AuthType:       server.AuthType,
		ConnectTimeout: connectTimeout,
	}
	var err error
	if server.AuthType == "key" {
		if target.PrivateKey, err = enc.Decrypt(server.EncryptedPrivateKey); err != nil {
			return nil, apperr.Internal("failed to decrypt private key", err)
		}
		if target.Passphrase, err = enc.Decrypt(server.EncryptedPassphrase); err != nil {
			return nil, apperr.Internal("failed to decrypt passphrase", err)
		}
	} else {
		if target.Password, err = enc.Decrypt(server.EncryptedPassword); err != nil {
			return nil, apperr.Internal("failed to decrypt password", err)
		}
	}
	return &target, nil
}
