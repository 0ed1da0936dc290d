package user

import (
	"recordhub/domain/user"
)

func toUserResponse(u *user.User) *UserResponse {
	return &UserResponse{
		ID:           u.ID(),
		Email:        u.Email().Value(),
		Username:     u.Username(),
		DateOfBirth:  u.DateOfBirth().String(),
		Gender:       string(u.Gender()),
		PhoneNumber:  u.PhoneNumber(),
		ResumeFileID: u.ResumeFileID(),
		Status:       string(u.Status()),
		Role:         string(u.Role()),
		CreatedAt:    u.CreatedAt(),
		UpdatedAt:    u.UpdatedAt(),
	}
}

func toUserResponses(users []*user.User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toAuthCodeResponse(a *user.AuthCode) *AuthCodeResponse {
	return &AuthCodeResponse{
		ID:        a.ID(),
		Email:     a.Email().Value(),
		Code:      a.Code(),
		Status:    string(a.Status()),
		ExpiredAt: a.ExpiredAt(),
		CreatedAt: a.CreatedAt(),
	}
}

func (r CreateUserRequest) params(hashed string) user.NewUserParams {
	return user.NewUserParams{
		Email:          r.Email,
		HashedPassword: hashed,
		Username:       r.Username,
		DateOfBirth:    r.DateOfBirth,
		Gender:         r.Gender,
		PhoneNumber:    r.PhoneNumber,
		ResumeFileID:   r.ResumeFileID,
		Status:         r.Status,
		Role:           r.Role,
	}
}
