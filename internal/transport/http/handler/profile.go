package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mira-companion/internal/app"
	"mira-companion/internal/prompt"
	"mira-companion/internal/transport/http/response"
)

type ProfileHandler struct {
	profileService *app.ProfileService
}

func NewProfileHandler(profileService *app.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	profile, err := h.profileService.Get(userID)
	if err != nil {
		writeProfileError(c, err)
		return
	}
	response.OK(c, profile)
}

// Update accepts multipart form data: display_name, status, and an optional
// avatar file stored as a blob.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	input := app.UpdateProfileInput{
		UserID:      userID,
		DisplayName: c.PostForm("display_name"),
		Status:      c.PostForm("status"),
	}

	if fileHeader, err := c.FormFile("avatar"); err == nil && fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read avatar file failed")
			return
		}
		defer file.Close()

		data, readErr := io.ReadAll(file)
		if readErr != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read avatar file failed")
			return
		}
		input.AvatarData = data
		input.AvatarContentType = fileHeader.Header.Get("Content-Type")
	}

	profile, err := h.profileService.Update(input)
	if err != nil {
		if errors.Is(err, app.ErrAvatarTooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, err.Error())
			return
		}
		writeProfileError(c, err)
		return
	}
	response.OK(c, profile)
}

func (h *ProfileHandler) Avatar(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	data, contentType, err := h.profileService.Avatar(userID)
	if err != nil {
		writeProfileError(c, err)
		return
	}
	if len(data) == 0 {
		c.Redirect(http.StatusFound, "/avatars/default_avatar.png")
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// CompanionProfile serves the persona's static profile card.
func (h *ProfileHandler) CompanionProfile(c *gin.Context) {
	response.OK(c, gin.H{
		"email":        "mira@companion.ai",
		"display_name": prompt.CompanionName,
		"avatar":       "/avatars/mira_avatar.png",
		"status":       "Thinking of you... 💭",
	})
}

func writeProfileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "profile operation failed")
	}
}
