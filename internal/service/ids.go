package service

import (
	"crypto/rand"
	"encoding/hex"
)

func newUploadID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
