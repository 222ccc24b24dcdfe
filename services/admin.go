package services

import (
	"strings"

	"platestyle/apperrors"
	"platestyle/models"

	"github.com/jinzhu/gorm"
)

type AdminService struct {
	DB *gorm.DB
}

type Stats struct {
	Users              int            `json:"users"`
	Admins             int            `json:"admins"`
	BlockedUsers       int            `json:"blocked_users"`
	Jobs               int            `json:"jobs"`
	JobsByStatus       map[string]int `json:"jobs_by_status"`
	CreditsOutstanding int            `json:"credits_outstanding"`
}

// ListUsers pages through users, optionally filtered by a case-insensitive name/email search.
func (s *AdminService) ListUsers(search string, req PageRequest) (Page[models.User], error) {
	q := s.DB.Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int
	if err := q.Count(&total).Error; err != nil {
		return Page[models.User]{}, apperrors.Internal("failed to count users", err)
	}

	var users []models.User
	if err := q.Order("id desc").Offset(req.Offset()).Limit(req.PerPage).Find(&users).Error; err != nil {
		return Page[models.User]{}, apperrors.Internal("failed to list users", err)
	}
	for i := range users {
		users[i].Password = ""
	}
	return NewPage(users, total, req), nil
}

// SetAdmin grants or removes the admin role. Admins cannot demote themselves.
func (s *AdminService) SetAdmin(actorID, userID int64, admin bool) (models.User, error) {
	if actorID == userID && !admin {
		return models.User{}, apperrors.Validation("cannot remove your own admin role")
	}
	return s.updateUser(userID, map[string]any{"admin": admin})
}

// SetStatus blocks, unblocks or marks a user pending. Admins cannot change their own status.
func (s *AdminService) SetStatus(actorID, userID int64, status int) (models.User, error) {
	if !models.IsValidUserStatus(status) {
		return models.User{}, apperrors.Validation("invalid status")
	}
	if actorID == userID {
		return models.User{}, apperrors.Validation("cannot change your own status")
	}
	return s.updateUser(userID, map[string]any{"status": status})
}

func (s *AdminService) updateUser(userID int64, fields map[string]any) (models.User, error) {
	res := s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return models.User{}, apperrors.Internal("failed to update user", res.Error)
	}

	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return user, apperrors.NotFound("user not found")
		}
		return user, apperrors.Internal("failed to load user", err)
	}
	user.Password = ""
	return user, nil
}

func (s *AdminService) Stats() (Stats, error) {
	st := Stats{JobsByStatus: map[string]int{
		models.JOB_STATUS_PENDING:    0,
		models.JOB_STATUS_PROCESSING: 0,
		models.JOB_STATUS_COMPLETED:  0,
		models.JOB_STATUS_FAILED:     0,
	}}

	if err := s.DB.Model(&models.User{}).Count(&st.Users).Error; err != nil {
		return st, apperrors.Internal("failed to count users", err)
	}
	if err := s.DB.Model(&models.User{}).Where("admin = ?", true).Count(&st.Admins).Error; err != nil {
		return st, apperrors.Internal("failed to count admins", err)
	}
	if err := s.DB.Model(&models.User{}).Where("status = ?", models.USER_STATUS_BLOCKED).Count(&st.BlockedUsers).Error; err != nil {
		return st, apperrors.Internal("failed to count blocked users", err)
	}

	rows, err := s.DB.Model(&models.GenerationJob{}).Select("status, count(*)").Group("status").Rows()
	if err != nil {
		return st, apperrors.Internal("failed to count jobs", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return st, apperrors.Internal("failed to scan job counts", err)
		}
		st.JobsByStatus[status] = n
		st.Jobs += n
	}

	var sum struct{ Total int }
	if err := s.DB.Model(&models.User{}).Select("COALESCE(SUM(credits), 0) AS total").Scan(&sum).Error; err != nil {
		return st, apperrors.Internal("failed to sum credits", err)
	}
	st.CreditsOutstanding = sum.Total
	return st, nil
}
