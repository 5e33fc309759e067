package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/medrag/backend/pkg/utils"
)

// Status 健康检查的响应体
type Status struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Handler 健康检查处理器，不依赖任何会话或问答状态
type Handler struct {
	service string
}

// New 创建健康检查处理器
func New(service string) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes 注册健康检查路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, Status{Status: "healthy", Service: h.service})
}
