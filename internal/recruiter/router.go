package recruiter

import (
	"context"
	"crypto/subtle"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册后台路由。管理端点在keyauth保护下，
// 候选人投递与解析端点公开。
func RegisterRoutes(h *server.Hertz, handler *Handler, apiKeys []string) {
	h.GET("/health", handler.Health)

	api := h.Group("/api/v1")

	// 候选人侧：投递与简历解析
	api.POST("/jobs/:job_id/applications", handler.SubmitApplication)
	api.POST("/parse-cv", handler.ParseCV)
	api.GET("/jobs", handler.ListJobPosts)
	api.GET("/jobs/:job_id", handler.GetJobPost)

	// 招聘方侧：岗位管理与投递审核
	admin := api.Group("/")
	if len(apiKeys) > 0 {
		admin.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-API-Key", ""),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				for _, allowed := range apiKeys {
					if subtle.ConstantTimeCompare([]byte(key), []byte(allowed)) == 1 {
						return true, nil
					}
				}
				return false, nil
			}),
		))
	}
	admin.POST("/jobs", handler.CreateJobPost)
	admin.POST("/jobs/:job_id/close", handler.CloseJobPost)
	admin.GET("/jobs/:job_id/applications", handler.ListApplications)
	admin.GET("/applications/:application_id", handler.GetApplication)
	admin.POST("/applications/:application_id/status", handler.UpdateApplicationStatus)
	admin.POST("/search/applications", handler.SearchApplications)
}
