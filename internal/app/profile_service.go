package app

import (
	"errors"
	"strings"

	"mira-companion/internal/model"
)

var ErrAvatarTooLarge = errors.New("avatar image exceeds size limit")

// ProfileStore extends the directory with the profile mutations.
type ProfileStore interface {
	UserDirectory
	UpdateProfile(id uint, displayName, status string) error
	UpdateAvatar(id uint, data []byte, contentType string) error
}

type ProfileService struct {
	users          ProfileStore
	avatarMaxBytes int
}

type Profile struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
	HasAvatar   bool   `json:"has_avatar"`
}

type UpdateProfileInput struct {
	UserID      uint
	DisplayName string
	Status      string

	// AvatarData empty means "leave the avatar alone".
	AvatarData        []byte
	AvatarContentType string
}

func NewProfileService(users ProfileStore, avatarMaxBytes int) *ProfileService {
	if avatarMaxBytes <= 0 {
		avatarMaxBytes = 50 * 1024
	}
	return &ProfileService{
		users:          users,
		avatarMaxBytes: avatarMaxBytes,
	}
}

func (s *ProfileService) Get(userID uint) (*Profile, error) {
	user, err := s.resolve(userID)
	if err != nil {
		return nil, err
	}
	return profileOf(user), nil
}

func (s *ProfileService) Update(input UpdateProfileInput) (*Profile, error) {
	user, err := s.resolve(input.UserID)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = user.DisplayName
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = user.Status
	}

	if err := s.users.UpdateProfile(user.ID, displayName, status); err != nil {
		return nil, err
	}
	user.DisplayName = displayName
	user.Status = status

	if len(input.AvatarData) > 0 {
		if len(input.AvatarData) > s.avatarMaxBytes {
			return nil, ErrAvatarTooLarge
		}
		if err := s.users.UpdateAvatar(user.ID, input.AvatarData, input.AvatarContentType); err != nil {
			return nil, err
		}
		user.AvatarData = input.AvatarData
		user.AvatarContentType = input.AvatarContentType
	}

	return profileOf(user), nil
}

// Avatar returns the raw blob and its content type.
func (s *ProfileService) Avatar(userID uint) ([]byte, string, error) {
	user, err := s.resolve(userID)
	if err != nil {
		return nil, "", err
	}
	if !user.HasAvatar() {
		return nil, "", nil
	}
	contentType := user.AvatarContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return user.AvatarData, contentType, nil
}

func (s *ProfileService) resolve(userID uint) (*model.User, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func profileOf(user *model.User) *Profile {
	return &Profile{
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Status:      user.Status,
		HasAvatar:   user.HasAvatar(),
	}
}
