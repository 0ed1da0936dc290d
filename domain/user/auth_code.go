package user

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"recordhub/domain/shared"

	"github.com/google/uuid"
)

const (
	AuthCodeEntityName = "user_auth_code"

	authCodeIDPrefix = "authcode-"

	// DefaultAuthCodeTTL 验证码默认有效期
	DefaultAuthCodeTTL = 2 * time.Minute

	authCodeMin = 100000
	authCodeMax = 999999
)

// AuthCode 邮箱验证码聚合根
type AuthCode struct {
	id        string
	email     Email
	code      string
	status    AuthCodeStatus
	expiredAt time.Time
	version   int
	createdAt time.Time
	updatedAt time.Time
}

// NewAuthCode 生成一个 6 位验证码，ttl <= 0 时使用默认有效期
func NewAuthCode(email string, ttl time.Duration) (*AuthCode, error) {
	e, err := NewEmail(email)
	if err != nil {
		return nil, err
	}
	code, err := randomCode()
	if err != nil {
		return nil, fmt.Errorf("generate auth code: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultAuthCodeTTL
	}

	now := time.Now().UTC()
	return &AuthCode{
		id:        authCodeIDPrefix + uuid.New().String(),
		email:     e,
		code:      code,
		status:    AuthCodePending,
		expiredAt: now.Add(ttl),
		createdAt: now,
		updatedAt: now,
	}, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(authCodeMax-authCodeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+authCodeMin), nil
}

// Expire 作废验证码
func (a *AuthCode) Expire() {
	a.status = AuthCodeExpired
}

// ChangeStatus 按字符串更新状态
func (a *AuthCode) ChangeStatus(raw string) error {
	s, err := ParseAuthCodeStatus(raw)
	if err != nil {
		return err
	}
	a.status = s
	return nil
}

// Verify 校验 code 是否可用：状态 pending、未过期、数值一致
func (a *AuthCode) Verify(code string, now time.Time) error {
	if a.status != AuthCodePending || !now.Before(a.expiredAt) {
		return NewAuthCodeRejectedError(ErrAuthCodeExpired, a.email.Value())
	}
	if code != a.code {
		return NewAuthCodeRejectedError(ErrInvalidAuthCode, a.email.Value())
	}
	return nil
}

func (a *AuthCode) IncrementVersionForSave(at time.Time) {
	a.version++
	a.updatedAt = at
}

func (a *AuthCode) Equals(other *AuthCode) bool {
	return other != nil && a.id == other.id
}

func (a *AuthCode) ID() string             { return a.id }
func (a *AuthCode) AggregateType() string  { return AuthCodeEntityName }
func (a *AuthCode) Email() Email           { return a.email }
func (a *AuthCode) Code() string           { return a.code }
func (a *AuthCode) Status() AuthCodeStatus { return a.status }
func (a *AuthCode) ExpiredAt() time.Time   { return a.expiredAt }
func (a *AuthCode) Version() int           { return a.version }
func (a *AuthCode) CreatedAt() time.Time   { return a.createdAt }
func (a *AuthCode) UpdatedAt() time.Time   { return a.updatedAt }

// Snapshot leaves the code itself out; only the mail sender reads it.
func (a *AuthCode) Snapshot() map[string]any {
	return map[string]any{
		"id":         a.id,
		"email":      a.email.Value(),
		"status":     string(a.status),
		"expired_at": a.expiredAt,
		"version":    a.version,
	}
}

type AuthCodeDTO struct {
	ID        string
	Email     string
	Code      string
	Status    string
	ExpiredAt time.Time
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func RebuildAuthCode(dto AuthCodeDTO) *AuthCode {
	return &AuthCode{
		id:        dto.ID,
		email:     Email{value: dto.Email},
		code:      dto.Code,
		status:    AuthCodeStatus(dto.Status),
		expiredAt: dto.ExpiredAt,
		version:   dto.Version,
		createdAt: dto.CreatedAt,
		updatedAt: dto.UpdatedAt,
	}
}

func (a *AuthCode) ToDTO() AuthCodeDTO {
	return AuthCodeDTO{
		ID:        a.id,
		Email:     a.email.Value(),
		Code:      a.code,
		Status:    string(a.status),
		ExpiredAt: a.expiredAt,
		Version:   a.version,
		CreatedAt: a.createdAt,
		UpdatedAt: a.updatedAt,
	}
}

var _ shared.AggregateRoot = (*AuthCode)(nil)
