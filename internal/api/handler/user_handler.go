package handler

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"gorm.io/gorm"

	"job-match-go/internal/logger"
	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
)

// UserHandler 用户档案的HTTP处理器。
// 不做任何鉴权，调用方自带user_id。
type UserHandler struct {
	storage *storage.Storage
}

// NewUserHandler 创建用户处理器
func NewUserHandler(store *storage.Storage) *UserHandler {
	return &UserHandler{storage: store}
}

// userUpsertRequest 用户创建/更新请求体
type userUpsertRequest struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"` // applicant / requester
}

// HandleUpsertUser 创建或更新用户档案，未传user_id时生成新ID。
// POST /api/v1/users
func (h *UserHandler) HandleUpsertUser(ctx context.Context, c *app.RequestContext) {
	var req userUpsertRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
		return
	}
	if req.Email == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "email 不能为空"})
		return
	}
	if req.Role == "" {
		req.Role = "applicant"
	}

	if req.UserID == "" {
		userUUID, err := uuid.NewV4()
		if err != nil {
			c.JSON(consts.StatusInternalServerError, utils.H{"error": "生成用户ID失败"})
			return
		}
		req.UserID = userUUID.String()
	}

	user := &models.User{
		UserID:      req.UserID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
	}
	if err := h.storage.MySQL.UpsertUser(ctx, user); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("user_id", req.UserID).Msg("用户落库失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "用户保存失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{
		"message":   "User saved successfully",
		"user_data": userJSON(user),
	})
}

// HandleGetUser 返回用户档案。
// GET /api/v1/users/:user_id
func (h *UserHandler) HandleGetUser(ctx context.Context, c *app.RequestContext) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "user_id 不能为空"})
		return
	}

	user, err := h.storage.MySQL.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "用户不存在"})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("查询用户失败")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "查询用户失败"})
		return
	}

	c.JSON(consts.StatusOK, utils.H{"user_data": userJSON(user)})
}

// userJSON 组装对外的用户JSON
func userJSON(user *models.User) utils.H {
	h := utils.H{
		"user_id":      user.UserID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"role":         user.Role,
		"created_at":   user.CreatedAt.Format(time.RFC3339),
		"updated_at":   user.UpdatedAt.Format(time.RFC3339),
	}
	if user.ResumeID != nil {
		h["resume_id"] = *user.ResumeID
	}
	return h
}
