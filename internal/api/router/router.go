package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"recruit-agent-go/internal/api/handler"
)

// RegisterRoutes 注册相似度/面试服务的全部路由
func RegisterRoutes(h *server.Hertz, api *handler.Handler) {
	h.GET("/health", api.Health)

	h.POST("/job", api.CreateJob)
	h.POST("/compare/:job_id", api.CompareCV)

	h.POST("/parsed-cv", api.SubmitParsedCV)
	h.POST("/application", api.SubmitApplication)
	h.POST("/search/applications", api.SearchApplications)

	iv := h.Group("/interview")
	iv.POST("/start", api.StartInterview)
	iv.POST("/next-question", api.NextQuestion)
	iv.POST("/evaluate-answer", api.EvaluateAnswer)
	iv.POST("/evaluate", api.EvaluateSession)
}
