/*
Package hashing 提供密码哈希实现。
*/
package hashing

import (
	"errors"

	"recordhub/domain/user"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password cannot be empty")

// Bcrypt implements user.PasswordHasher.
type Bcrypt struct {
	cost int
}

// NewBcrypt cost <= 0 uses bcrypt.DefaultCost
func NewBcrypt(cost int) *Bcrypt {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (b *Bcrypt) Compare(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

var _ user.PasswordHasher = (*Bcrypt)(nil)
