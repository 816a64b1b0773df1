package crypto_test

import (
	"crypto/rand"
	"testing"

	"github.com/lsvault/lsvault/internal/crypto"
)

func BenchmarkDeriveKey(b *testing.B) {
	salt := make([]byte, crypto.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		b.Fatal(err)
	}

	secret := []byte("machine-bound-secret")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.DeriveKey(secret, salt); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncryptData(b *testing.B) {
	key := make([]byte, crypto.KeySize)
	if _, err := rand.Read(key); err != nil {
		b.Fatal(err)
	}

	plaintext := make([]byte, 1024) // 1KB
	if _, err := rand.Read(plaintext); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))

	for i := 0; i < b.N; i++ {
		if _, err := crypto.EncryptData(plaintext, key); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecryptData(b *testing.B) {
	key := make([]byte, crypto.KeySize)
	if _, err := rand.Read(key); err != nil {
		b.Fatal(err)
	}

	plaintext := make([]byte, 1024) // 1KB
	if _, err := rand.Read(plaintext); err != nil {
		b.Fatal(err)
	}

	ciphertext, err := crypto.EncryptData(plaintext, key)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.SetBytes(int64(len(plaintext)))

	for i := 0; i < b.N; i++ {
		if _, err := crypto.DecryptData(ciphertext, key); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkValidateKeySize(b *testing.B) {
	key := make([]byte, crypto.KeySize)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = crypto.ValidateKeySize(key)
	}
}
