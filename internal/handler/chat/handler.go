package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"k8s.io/klog/v2"

	"github.com/zhouzirui/medrag/backend/internal/middleware"
	chatService "github.com/zhouzirui/medrag/backend/internal/service/chat"
	"github.com/zhouzirui/medrag/backend/internal/web"
)

// Handler 聊天页面的HTTP处理器
type Handler struct {
	orchestrator *chatService.Orchestrator
	renderer     *web.Renderer
	serviceName  string
}

// New 创建聊天处理器
func New(orchestrator *chatService.Orchestrator, renderer *web.Renderer, serviceName string) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		renderer:     renderer,
		serviceName:  serviceName,
	}
}

// RegisterRoutes 注册聊天相关的路由，需挂在会话中间件之后
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/", h.handleSubmit)
	r.Get("/clear", h.handleClear)
}

// handleIndex 渲染当前会话的对话记录
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionID(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	h.render(w, r, sessionID, "")
}

// handleSubmit 处理表单提交；成功或空输入时重定向，失败时直接渲染错误
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionID(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	prompt := r.PostFormValue("prompt")
	if _, err := h.orchestrator.Submit(r.Context(), sessionID, prompt); err != nil {
		h.render(w, r, sessionID, chatService.UserMessage(err))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleClear 清空对话记录
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionID(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	h.orchestrator.Clear(r.Context(), sessionID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, sessionID, errMsg string) {
	page := web.IndexPage{
		ServiceName: h.serviceName,
		Messages:    h.orchestrator.Transcript(r.Context(), sessionID),
		Error:       errMsg,
	}

	klog.V(6).Infof("[chat] render session=%s, turns=%d, error=%t", sessionID, page.Messages.Len(), errMsg != "")

	// RenderIndex 只在渲染成功后才写出内容
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.RenderIndex(w, page); err != nil {
		klog.Errorf("[chat] failed to render page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}
