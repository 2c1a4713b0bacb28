package relay

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// aes128gcm header layout: 16 byte salt, 4 byte record size, 1 byte key id
// length, then the key id (the sender's ephemeral P-256 public key).
const (
	headerMinLen = 16 + 4 + 1
	gcmTagLen    = 16
	minRecordLen = 18
)

// decryptPush decrypts an aes128gcm push message body using the
// subscription's private key and auth secret. Web push messages fit in a
// single record, so only one record is accepted.
func decryptPush(priv *ecdh.PrivateKey, authSecret, body []byte) ([]byte, error) {
	if len(body) < headerMinLen {
		return nil, errors.New("push body shorter than header")
	}

	salt := body[:16]
	recordSize := binary.BigEndian.Uint32(body[16:20])
	idLen := int(body[20])

	if recordSize < minRecordLen {
		return nil, fmt.Errorf("invalid record size %d", recordSize)
	}
	if len(body) < headerMinLen+idLen {
		return nil, errors.New("push body truncated in key id")
	}

	keyID := body[headerMinLen : headerMinLen+idLen]
	ciphertext := body[headerMinLen+idLen:]

	if len(ciphertext) <= gcmTagLen {
		return nil, errors.New("push body has no ciphertext")
	}
	if uint32(len(ciphertext)) > recordSize {
		return nil, errors.New("push body spans multiple records")
	}

	senderPub, err := ecdh.P256().NewPublicKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("parse sender key: %w", err)
	}

	shared, err := priv.ECDH(senderPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh agreement: %w", err)
	}

	cek, nonce, err := deriveContentKeys(shared, authSecret, salt, priv.PublicKey().Bytes(), keyID)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt record: %w", err)
	}

	return stripPadding(plain)
}

// deriveContentKeys runs the double HKDF chain: ECDH shared secret and auth
// secret into the input keying material, then salt into the content key and
// nonce.
func deriveContentKeys(shared, authSecret, salt, receiverPub, senderPub []byte) (cek, nonce []byte, err error) {
	var keyInfo bytes.Buffer
	keyInfo.WriteString("WebPush: info\x00")
	keyInfo.Write(receiverPub)
	keyInfo.Write(senderPub)

	prkAuth := hkdf.Extract(sha256.New, shared, authSecret)
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prkAuth, keyInfo.Bytes()), ikm); err != nil {
		return nil, nil, err
	}

	prk := hkdf.Extract(sha256.New, ikm, salt)

	cek = make([]byte, 16)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, 12)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, nil, err
	}

	return cek, nonce, nil
}

// stripPadding removes trailing zero padding and the record delimiter. The
// final record's delimiter is 0x02; non-final records use 0x01 and are
// tolerated since senders emit a single record either way.
func stripPadding(plain []byte) ([]byte, error) {
	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, errors.New("record is all padding")
	}
	if plain[i] != 0x01 && plain[i] != 0x02 {
		return nil, fmt.Errorf("invalid record delimiter 0x%02x", plain[i])
	}
	return plain[:i], nil
}
