package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomUpper returns n characters drawn from A-Z0-9.
func RandomUpper(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(upperAlnum)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			idx = big.NewInt(time.Now().UnixNano() % int64(len(upperAlnum)))
		}
		b[i] = upperAlnum[idx.Int64()]
	}
	return string(b)
}

// GenerateTicketCode returns AT-<unixMillis>-<6 chars>.
func GenerateTicketCode() string {
	return fmt.Sprintf("AT-%d-%s", time.Now().UnixMilli(), RandomUpper(6))
}

// GeneratePaymentRef returns PAY-<unixMillis>-<9 chars>.
func GeneratePaymentRef() string {
	return fmt.Sprintf("PAY-%d-%s", time.Now().UnixMilli(), RandomUpper(9))
}
