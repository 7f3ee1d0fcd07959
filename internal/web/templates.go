package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticFS は/static配下で配信する埋め込みアセットを返す。
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}

// Renderer は埋め込みテンプレートのレンダリングを提供する。
// 各ページテンプレートはレイアウトと合成してパースされる。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は全ページテンプレートをパースしたRendererを生成する。
// テンプレートの不備は起動時に検出される。
func NewRenderer() (*Renderer, error) {
	pageNames := []string{"login", "register", "todos", "users"}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render は指定ページをレイアウト込みで描画する。
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown template: %s", page)
	}
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}
	return nil
}
