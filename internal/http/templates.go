package httpapp

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Templates struct {
	Home *template.Template
	Edit *template.Template
}

func loadTemplates() (*Templates, error) {
	layoutContent, err := templateFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, err
	}

	// Each page is the layout plus its own "content" definition.
	makePage := func(pageName string) (*template.Template, error) {
		pageContent, err := templateFS.ReadFile("templates/" + pageName + ".html")
		if err != nil {
			return nil, err
		}
		t, err := template.New("layout").Parse(string(layoutContent))
		if err != nil {
			return nil, err
		}
		return t.Parse(string(pageContent))
	}

	home, err := makePage("home")
	if err != nil {
		return nil, err
	}
	edit, err := makePage("edit")
	if err != nil {
		return nil, err
	}

	return &Templates{Home: home, Edit: edit}, nil
}

func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
