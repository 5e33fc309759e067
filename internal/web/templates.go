package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/zhouzirui/medrag/backend/internal/model/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

// IndexPage 是首页模板的数据。
type IndexPage struct {
	ServiceName string
	Messages    chat.Transcript
	Error       string
}

// Renderer 渲染内嵌的 HTML 模板。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer 解析内嵌模板，模板有误时返回错误。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").
		Funcs(template.FuncMap{"nl2br": NL2BR}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// RenderIndex 先渲染到缓冲区，保证模板出错时不会输出半个页面。
func (r *Renderer) RenderIndex(w io.Writer, page IndexPage) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "index.html", page); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// NL2BR escapes text and turns newlines into <br> tags.
func NL2BR(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
}
