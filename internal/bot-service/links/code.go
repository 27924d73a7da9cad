package links

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const codeLength = 12

// NewCode renders 16 bytes from crypto/rand as base64url and keeps the first
// 12 characters, all 72 bits of them random.
func NewCode() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(b)[:codeLength]
}

// ShareURL builds the deep link that hands code to the bot's start command.
func ShareURL(host, botHandle, code string) string {
	return fmt.Sprintf("https://%s/%s?start=%s", host, trimAt(botHandle), code)
}

func trimAt(handle string) string {
	if len(handle) > 0 && handle[0] == '@' {
		return handle[1:]
	}
	return handle
}
