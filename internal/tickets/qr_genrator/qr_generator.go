package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/skip2/go-qrcode"

	"wave-ticketing/internal/models"
)

var ErrInvalidToken = errors.New("invalid qr token")

type QRGenerator struct {
	secret  []byte
	baseURL string
}

// NewQRGenerator derives the AES-256 key from secret. baseURL is the public
// app address the validation link points at.
func NewQRGenerator(secret, baseURL string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:], baseURL: baseURL}
}

// Seal encrypts the claim into a URL-safe token.
func (q *QRGenerator) Seal(claim models.TicketClaim) (string, error) {
	data, err := json.Marshal(claim)
	if err != nil {
		return "", err
	}

	gcm, err := q.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts and authenticates a token produced by Seal.
func (q *QRGenerator) Open(token string) (*models.TicketClaim, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	gcm, err := q.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrInvalidToken
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var claim models.TicketClaim
	if err := json.Unmarshal(data, &claim); err != nil || claim.TicketCode == "" {
		return nil, ErrInvalidToken
	}
	return &claim, nil
}

// ValidationURL is the link encoded in the ticket's QR image.
func (q *QRGenerator) ValidationURL(code, token string) string {
	return fmt.Sprintf("%s/validate/%s?t=%s", q.baseURL, url.PathEscape(code), url.QueryEscape(token))
}

// GenerateEncryptedQR seals the claim and renders the validation link as a
// PNG.
func (q *QRGenerator) GenerateEncryptedQR(claim models.TicketClaim) ([]byte, string, error) {
	token, err := q.Seal(claim)
	if err != nil {
		return nil, "", fmt.Errorf("seal ticket claim: %w", err)
	}

	png, err := qrcode.Encode(q.ValidationURL(claim.TicketCode, token), qrcode.Medium, 256)
	if err != nil {
		return nil, "", fmt.Errorf("encode qr: %w", err)
	}
	return png, token, nil
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
