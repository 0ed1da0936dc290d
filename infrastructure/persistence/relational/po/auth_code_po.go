package po

import (
	"time"

	"recordhub/domain/user"
)

type AuthCodePO struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Email     string    `gorm:"size:255;index:idx_auth_codes_email_code;not null"`
	Code      string    `gorm:"size:6;index:idx_auth_codes_email_code;not null"`
	Status    string    `gorm:"size:16;not null"`
	ExpiredAt time.Time `gorm:"not null"`
	Version   int       `gorm:"default:0;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (AuthCodePO) TableName() string {
	return "user_auth_codes"
}

func FromAuthCodeDomain(a *user.AuthCode) *AuthCodePO {
	dto := a.ToDTO()
	return &AuthCodePO{
		ID:        dto.ID,
		Email:     dto.Email,
		Code:      dto.Code,
		Status:    dto.Status,
		ExpiredAt: dto.ExpiredAt,
		Version:   dto.Version,
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
}

func (po *AuthCodePO) ToDomain() *user.AuthCode {
	return user.RebuildAuthCode(user.AuthCodeDTO{
		ID:        po.ID,
		Email:     po.Email,
		Code:      po.Code,
		Status:    po.Status,
		ExpiredAt: po.ExpiredAt.UTC(),
		Version:   po.Version,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	})
}

func (po *AuthCodePO) Columns() map[string]any {
	return map[string]any{
		"email":      po.Email,
		"code":       po.Code,
		"status":     po.Status,
		"expired_at": po.ExpiredAt,
	}
}
