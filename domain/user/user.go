package user

import (
	"strings"
	"time"

	"recordhub/domain/shared"

	"github.com/google/uuid"
)

const (
	// EntityName 既是错误里的实体名，也是事件路由用的聚合类型
	EntityName = "user"

	idPrefix          = "user-"
	maxUsernameLength = 64
)

// User 用户聚合根
//
// 聚合根特征：
// 1. 所有字段私有，通过方法暴露行为
// 2. 标识由工厂分配，创建后不可变
// 3. 相等性只看标识（Equals），属性原地修改不影响容器语义
type User struct {
	id             string
	email          Email
	hashedPassword string
	username       string
	dateOfBirth    DateOfBirth
	gender         Gender
	phoneNumber    string
	resumeFileID   string
	status         Status
	role           Role
	version        int // 乐观锁版本号，由持久化适配器维护
	createdAt      time.Time
	updatedAt      time.Time
}

// NewUserParams 创建用户的输入
type NewUserParams struct {
	Email          string
	HashedPassword string
	Username       string
	DateOfBirth    string
	Gender         string
	PhoneNumber    string
	ResumeFileID   string
	Status         string
	Role           string
}

// NewUser 创建新用户实体
// 管理员账号总是 active。
func NewUser(p NewUserParams) (*User, error) {
	email, err := NewEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.HashedPassword) == "" {
		return nil, newValidationError(EntityName, "hashed_password", ErrInvalidPassword, "")
	}
	username := strings.TrimSpace(p.Username)
	if len(username) > maxUsernameLength {
		return nil, newValidationError(EntityName, "username", ErrInvalidUsername, "longer than 64 characters")
	}
	dob, err := NewDateOfBirth(p.DateOfBirth)
	if err != nil {
		return nil, err
	}
	gender, err := ParseGender(p.Gender)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(p.Status)
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(p.Role)
	if err != nil {
		return nil, err
	}
	if role == RoleAdmin {
		status = StatusActive
	}

	now := time.Now().UTC()
	return &User{
		id:             idPrefix + uuid.New().String(),
		email:          email,
		hashedPassword: p.HashedPassword,
		username:       username,
		dateOfBirth:    dob,
		gender:         gender,
		phoneNumber:    strings.TrimSpace(p.PhoneNumber),
		resumeFileID:   strings.TrimSpace(p.ResumeFileID),
		status:         status,
		role:           role,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ============================================================================
// 领域行为方法
// ============================================================================

// ChangePassword 替换密码哈希
func (u *User) ChangePassword(hashedPassword string) error {
	if strings.TrimSpace(hashedPassword) == "" {
		return newValidationError(EntityName, "hashed_password", ErrInvalidPassword, "")
	}
	u.hashedPassword = hashedPassword
	return nil
}

// ChangeStatus 变更状态；管理员不能被停用
func (u *User) ChangeStatus(raw string) error {
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	if u.role == RoleAdmin && status != StatusActive {
		return newValidationError(EntityName, "status", ErrInvalidStatus, "admin accounts stay active")
	}
	u.status = status
	return nil
}

// AttachResume 关联简历文件
func (u *User) AttachResume(fileID string) {
	u.resumeFileID = strings.TrimSpace(fileID)
}

// CanSignIn 业务规则：只有 active 用户可以登录
func (u *User) CanSignIn() bool {
	return u.status == StatusActive
}

// IncrementVersionForSave 由仓储在写入成功后调用
func (u *User) IncrementVersionForSave(at time.Time) {
	u.version++
	u.updatedAt = at
}

// Equals 基于标识的相等性
func (u *User) Equals(other *User) bool {
	return other != nil && u.id == other.id
}

// ============================================================================
// Getters - 只读访问器
// ============================================================================

func (u *User) ID() string               { return u.id }
func (u *User) AggregateType() string    { return EntityName }
func (u *User) Email() Email             { return u.email }
func (u *User) HashedPassword() string   { return u.hashedPassword }
func (u *User) Username() string         { return u.username }
func (u *User) DateOfBirth() DateOfBirth { return u.dateOfBirth }
func (u *User) Gender() Gender           { return u.gender }
func (u *User) PhoneNumber() string      { return u.phoneNumber }
func (u *User) ResumeFileID() string     { return u.resumeFileID }
func (u *User) Status() Status           { return u.status }
func (u *User) Role() Role               { return u.role }
func (u *User) Version() int             { return u.version }
func (u *User) CreatedAt() time.Time     { return u.createdAt }
func (u *User) UpdatedAt() time.Time     { return u.updatedAt }

// Snapshot 事件载荷，不含密码哈希
func (u *User) Snapshot() map[string]any {
	return map[string]any{
		"id":             u.id,
		"email":          u.email.Value(),
		"username":       u.username,
		"date_of_birth":  u.dateOfBirth.String(),
		"gender":         string(u.gender),
		"phone_number":   u.phoneNumber,
		"resume_file_id": u.resumeFileID,
		"status":         string(u.status),
		"role":           string(u.role),
		"version":        u.version,
		"updated_at":     u.updatedAt,
	}
}

// ReconstructionDTO 用户重建数据传输对象
// ⚠️ 注意：此DTO仅应在仓储实现中使用，不应在应用层调用
type ReconstructionDTO struct {
	ID             string
	Email          string
	HashedPassword string
	Username       string
	DateOfBirth    string
	Gender         string
	PhoneNumber    string
	ResumeFileID   string
	Status         string
	Role           string
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RebuildFromDTO 从存储重建User聚合根，不做校验
// ⚠️ 注意：此方法仅应在仓储实现中使用，不应在应用层调用
func RebuildFromDTO(dto ReconstructionDTO) *User {
	return &User{
		id:             dto.ID,
		email:          Email{value: dto.Email},
		hashedPassword: dto.HashedPassword,
		username:       dto.Username,
		dateOfBirth:    DateOfBirth{value: dto.DateOfBirth},
		gender:         Gender(dto.Gender),
		phoneNumber:    dto.PhoneNumber,
		resumeFileID:   dto.ResumeFileID,
		status:         Status(dto.Status),
		role:           Role(dto.Role),
		version:        dto.Version,
		createdAt:      dto.CreatedAt,
		updatedAt:      dto.UpdatedAt,
	}
}

// ToDTO 导出存储所需的全部字段
func (u *User) ToDTO() ReconstructionDTO {
	return ReconstructionDTO{
		ID:             u.id,
		Email:          u.email.Value(),
		HashedPassword: u.hashedPassword,
		Username:       u.username,
		DateOfBirth:    u.dateOfBirth.String(),
		Gender:         string(u.gender),
		PhoneNumber:    u.phoneNumber,
		ResumeFileID:   u.resumeFileID,
		Status:         string(u.status),
		Role:           string(u.role),
		Version:        u.version,
		CreatedAt:      u.createdAt,
		UpdatedAt:      u.updatedAt,
	}
}

// 编译时检查 User 实现了 AggregateRoot 接口
var _ shared.AggregateRoot = (*User)(nil)
