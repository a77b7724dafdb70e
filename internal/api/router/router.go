package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"job-match-go/internal/api/handler"
)

// Handlers 路由注册所需的全部处理器
type Handlers struct {
	User        *handler.UserHandler
	Resume      *handler.ResumeHandler
	Job         *handler.JobHandler
	Application *handler.ApplicationHandler
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, handlers Handlers) {
	api := h.Group("/api/v1")

	// 用户
	api.POST("/users", handlers.User.HandleUpsertUser)
	api.GET("/users/:user_id", handlers.User.HandleGetUser)

	// 简历: 上传、查询、职位撮合
	api.POST("/users/:user_id/resume", handlers.Resume.HandleResumeUpload)
	api.GET("/users/:user_id/resume", handlers.Resume.HandleGetResume)
	api.GET("/users/:user_id/matches", handlers.Resume.HandleMatchJobs)

	// 职位
	api.POST("/jobs", handlers.Job.HandleCreateJob)
	api.GET("/jobs", handlers.Job.HandleListJobs)
	api.GET("/jobs/:job_id", handlers.Job.HandleGetJob)
	api.PUT("/jobs/:job_id", handlers.Job.HandleUpdateJob)
	api.DELETE("/jobs/:job_id", handlers.Job.HandleDeleteJob)

	// 申请
	api.POST("/jobs/:job_id/apply", handlers.Application.HandleApply)
	api.GET("/jobs/:job_id/applicants", handlers.Application.HandleJobApplicants)
	api.GET("/users/:user_id/applications", handlers.Application.HandleMyApplications)

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
