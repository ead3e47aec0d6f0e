package app

import (
	"bytes"
	"errors"
	"testing"

	"mira-companion/internal/model"
)

type fakeProfileStore struct {
	users map[uint]*model.User
}

func (f *fakeProfileStore) GetByID(id uint) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeProfileStore) UpdateProfile(id uint, displayName, status string) error {
	f.users[id].DisplayName = displayName
	f.users[id].Status = status
	return nil
}

func (f *fakeProfileStore) UpdateAvatar(id uint, data []byte, contentType string) error {
	f.users[id].AvatarData = data
	f.users[id].AvatarContentType = contentType
	return nil
}

func newProfileService() (*ProfileService, *fakeProfileStore) {
	store := &fakeProfileStore{users: map[uint]*model.User{
		1: {ID: 1, Email: "eve@example.com", DisplayName: "Eve", Status: "hi"},
	}}
	return NewProfileService(store, 50*1024), store
}

func TestUpdateProfileKeepsEmptyFields(t *testing.T) {
	svc, _ := newProfileService()

	profile, err := svc.Update(UpdateProfileInput{UserID: 1, Status: "new status"})
	if err != nil {
		t.Fatalf("Update err: %v", err)
	}
	if profile.DisplayName != "Eve" {
		t.Fatalf("empty display name must keep the existing one, got %q", profile.DisplayName)
	}
	if profile.Status != "new status" {
		t.Fatalf("Status = %q", profile.Status)
	}
}

func TestUpdateProfileRejectsOversizeAvatar(t *testing.T) {
	svc, store := newProfileService()

	_, err := svc.Update(UpdateProfileInput{
		UserID:            1,
		AvatarData:        bytes.Repeat([]byte{0xff}, 50*1024+1),
		AvatarContentType: "image/png",
	})
	if !errors.Is(err, ErrAvatarTooLarge) {
		t.Fatalf("expected ErrAvatarTooLarge, got %v", err)
	}
	if store.users[1].HasAvatar() {
		t.Fatal("oversize avatar must not be stored")
	}
}

func TestAvatarRoundTrip(t *testing.T) {
	svc, _ := newProfileService()

	blob := bytes.Repeat([]byte{0x01}, 128)
	if _, err := svc.Update(UpdateProfileInput{UserID: 1, AvatarData: blob, AvatarContentType: "image/jpeg"}); err != nil {
		t.Fatalf("Update err: %v", err)
	}

	data, contentType, err := svc.Avatar(1)
	if err != nil {
		t.Fatalf("Avatar err: %v", err)
	}
	if !bytes.Equal(data, blob) {
		t.Fatal("stored avatar does not round-trip")
	}
	if contentType != "image/jpeg" {
		t.Fatalf("content type = %q", contentType)
	}
}

func TestAvatarMissingReturnsEmpty(t *testing.T) {
	svc, _ := newProfileService()

	data, _, err := svc.Avatar(1)
	if err != nil {
		t.Fatalf("Avatar err: %v", err)
	}
	if len(data) != 0 {
		t.Fatal("user without an avatar must yield no blob")
	}
}

func TestProfileUnknownUser(t *testing.T) {
	svc, _ := newProfileService()

	if _, err := svc.Get(7); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
