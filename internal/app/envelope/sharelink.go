// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ShareLinks encodes claim deep-links so an envelope id can travel
// inside a chat start-parameter without being enumerable. The secret is
// 64 hex chars: 16 key bytes followed by 16 IV bytes.
type ShareLinks struct {
	key         []byte
	iv          []byte
	botUsername string
}

func NewShareLinks(secretHex, botUsername string) (*ShareLinks, error) {
	raw, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, errors.Wrap(err, "share link secret is not hex")
	}
	if len(raw) != 2*aes.BlockSize {
		return nil, errors.Errorf("share link secret must be %d bytes, got %d", 2*aes.BlockSize, len(raw))
	}
	return &ShareLinks{
		key:         raw[:aes.BlockSize],
		iv:          raw[aes.BlockSize:],
		botUsername: botUsername,
	}, nil
}

func (s *ShareLinks) Generate(userID, envelopeID int64) (string, error) {
	payload := fmt.Sprintf("snatch_%d_%d", userID, envelopeID)
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(payload), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, s.iv).CryptBlocks(out, padded)
	token := base64.RawURLEncoding.EncodeToString(out)
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, token), nil
}

// Parse recovers (userID, envelopeID) from a start-parameter. Any
// malformed input is reported as a plain not-a-link error.
func (s *ShareLinks) Parse(token string) (int64, int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return 0, 0, errors.New("not a share link")
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return 0, 0, err
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, s.iv).CryptBlocks(out, raw)
	payload, ok := pkcs7Unpad(out, aes.BlockSize)
	if !ok {
		return 0, 0, errors.New("not a share link")
	}
	parts := strings.Split(string(payload), "_")
	if len(parts) != 3 || parts[0] != "snatch" {
		return 0, 0, errors.New("not a share link")
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, errors.New("not a share link")
	}
	envelopeID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, errors.New("not a share link")
	}
	return userID, envelopeID, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
