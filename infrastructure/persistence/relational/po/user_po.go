package po

import (
	"time"

	"recordhub/domain/user"
)

type UserPO struct {
	ID             string    `gorm:"primaryKey;size:64"`
	Email          string    `gorm:"size:255;uniqueIndex;not null"`
	HashedPassword string    `gorm:"size:255;not null"`
	Username       string    `gorm:"size:64"`
	DateOfBirth    string    `gorm:"size:10"`
	Gender         string    `gorm:"size:16"`
	PhoneNumber    string    `gorm:"size:32"`
	ResumeFileID   string    `gorm:"size:64"`
	Status         string    `gorm:"size:16;index;not null"`
	Role           string    `gorm:"size:16;index;not null"`
	Version        int       `gorm:"default:0;not null"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (UserPO) TableName() string {
	return "users"
}

func FromUserDomain(u *user.User) *UserPO {
	dto := u.ToDTO()
	return &UserPO{
		ID:             dto.ID,
		Email:          dto.Email,
		HashedPassword: dto.HashedPassword,
		Username:       dto.Username,
		DateOfBirth:    dto.DateOfBirth,
		Gender:         dto.Gender,
		PhoneNumber:    dto.PhoneNumber,
		ResumeFileID:   dto.ResumeFileID,
		Status:         dto.Status,
		Role:           dto.Role,
		Version:        dto.Version,
		CreatedAt:      dto.CreatedAt,
		UpdatedAt:      dto.UpdatedAt,
	}
}

func (po *UserPO) ToDomain() *user.User {
	return user.RebuildFromDTO(user.ReconstructionDTO{
		ID:             po.ID,
		Email:          po.Email,
		HashedPassword: po.HashedPassword,
		Username:       po.Username,
		DateOfBirth:    po.DateOfBirth,
		Gender:         po.Gender,
		PhoneNumber:    po.PhoneNumber,
		ResumeFileID:   po.ResumeFileID,
		Status:         po.Status,
		Role:           po.Role,
		Version:        po.Version,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
	})
}

// Columns 乐观锁更新时写回的字段，不含 id/version/created_at
func (po *UserPO) Columns() map[string]any {
	return map[string]any{
		"email":           po.Email,
		"hashed_password": po.HashedPassword,
		"username":        po.Username,
		"date_of_birth":   po.DateOfBirth,
		"gender":          po.Gender,
		"phone_number":    po.PhoneNumber,
		"resume_file_id":  po.ResumeFileID,
		"status":          po.Status,
		"role":            po.Role,
	}
}
