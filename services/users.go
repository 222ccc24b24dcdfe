package services

import (
	"strings"
	"time"

	"platestyle/apperrors"
	"platestyle/models"
	"platestyle/tools"

	"github.com/jinzhu/gorm"
)

type UserService struct {
	DB          *gorm.DB
	BcryptCost  int
	SignupBonus int
}

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// Register creates an available, non-admin user and credits the signup bonus.
func (s *UserService) Register(req RegisterRequest) (models.User, error) {
	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: req.Password,
	}

	if missing := user.MissingFields(); missing != "" {
		if missing == "password" && user.Password != "" {
			return user, apperrors.Validation("password must have at least 8 characters")
		}
		return user, apperrors.Validation("missing field " + missing)
	}
	if !tools.ValidateEmail(user.Email) {
		return user, apperrors.Validation("invalid email")
	}

	var count int
	if err := s.DB.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return user, apperrors.Internal("failed to check user", err)
	}
	if count > 0 {
		return user, apperrors.Conflict("user already exists")
	}

	hash, err := tools.HashPassword(user.Password, s.BcryptCost)
	if err != nil {
		return user, apperrors.Internal("failed to hash password", err)
	}
	user.Password = hash
	user.Admin = false
	user.Status = models.USER_STATUS_AVAILABLE
	user.Credits = max(s.SignupBonus, 0)

	now := time.Now()
	tx := s.DB.Begin()
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return user, apperrors.Internal("failed to create user", err)
	}
	if user.Credits > 0 {
		if err := writeLedger(tx, models.CreditTransaction{
			UserID: user.ID,
			Delta:  user.Credits,
			Reason: models.CREDIT_REASON_SIGNUP,
		}, now); err != nil {
			tx.Rollback()
			return user, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return user, apperrors.Internal("failed to commit user", err)
	}

	user.Password = ""
	return user, nil
}

// Authenticate checks credentials; pending and blocked accounts are refused.
func (s *UserService) Authenticate(email, password string) (models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return user, apperrors.Validation("email and password are required")
	}

	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return user, apperrors.Unauthorized("invalid email or password")
		}
		return user, apperrors.Internal("failed to load user", err)
	}
	if !tools.CheckPasswordHash(user.Password, password) {
		return models.User{}, apperrors.Unauthorized("invalid email or password")
	}

	switch user.Status {
	case models.USER_STATUS_PENDING:
		return models.User{}, apperrors.Forbidden("account pending activation")
	case models.USER_STATUS_BLOCKED:
		return models.User{}, apperrors.Forbidden("account blocked")
	}

	user.Password = ""
	return user, nil
}

func (s *UserService) Get(id int64) (models.User, error) {
	var user models.User
	if err := s.DB.Where("id = ?", id).First(&user).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return user, apperrors.NotFound("user not found")
		}
		return user, apperrors.Internal("failed to load user", err)
	}
	return user, nil
}

// UpdateProfile changes the user's display name and, when newPassword is set, the password.
// Changing the password requires the current one.
func (s *UserService) UpdateProfile(userID int64, name *string, currentPassword, newPassword string) (models.User, error) {
	user, err := s.Get(userID)
	if err != nil {
		return user, err
	}

	fields := map[string]any{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return models.User{}, apperrors.Validation("name must not be empty")
		}
		fields["name"] = trimmed
	}
	if newPassword != "" {
		if !tools.CheckPasswordHash(user.Password, currentPassword) {
			return models.User{}, apperrors.Unauthorized("current password is incorrect")
		}
		if tools.CheckPassword(newPassword) != "" {
			return models.User{}, apperrors.Validation("password must have at least 8 characters")
		}
		hash, err := tools.HashPassword(newPassword, s.BcryptCost)
		if err != nil {
			return models.User{}, apperrors.Internal("failed to hash password", err)
		}
		fields["password"] = hash
	}

	if len(fields) > 0 {
		if err := s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(fields).Error; err != nil {
			return models.User{}, apperrors.Internal("failed to update user", err)
		}
		if user, err = s.Get(userID); err != nil {
			return user, err
		}
	}
	user.Password = ""
	return user, nil
}
