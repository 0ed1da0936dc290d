package user

import "time"

// CreateUserRequest 密码以明文传入，服务内哈希
type CreateUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Username     string `json:"username,omitempty"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
	Gender       string `json:"gender,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	ResumeFileID string `json:"resume_file_id,omitempty"`
	Status       string `json:"status,omitempty"`
	Role         string `json:"role,omitempty"`
}

// ResumeUpload 注册时随用户一起创建的简历元数据
type ResumeUpload struct {
	Name      string `json:"name"`
	Extension string `json:"extension,omitempty"`
}

type RegisterRequest struct {
	CreateUserRequest
	Resume *ResumeUpload `json:"resume,omitempty"`
}

// UpdateUserRequest nil 字段保持不变
type UpdateUserRequest struct {
	Password     *string `json:"password,omitempty"`
	Status       *string `json:"status,omitempty"`
	ResumeFileID *string `json:"resume_file_id,omitempty"`
}

type ListUsersRequest struct {
	Status string `json:"status,omitempty"`
	Role   string `json:"role,omitempty"`
}

// UserResponse 不包含密码哈希
type UserResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username,omitempty"`
	DateOfBirth  string    `json:"date_of_birth,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	ResumeFileID string    `json:"resume_file_id,omitempty"`
	ResumeURL    string    `json:"resume_url,omitempty"`
	Status       string    `json:"status"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthCodeResponse Code 只在进程内可见，不会被序列化
type AuthCodeResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	Status    string    `json:"status"`
	ExpiredAt time.Time `json:"expired_at"`
	CreatedAt time.Time `json:"created_at"`
}
