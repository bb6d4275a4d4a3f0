package share

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/banshee-data/photobooth/internal/db"
)

//go:embed templates/share.html
var templateFS embed.FS

var sharePage = template.Must(template.ParseFS(templateFS, "templates/share.html"))

// PageMeta is the site-wide copy shown on every share card.
type PageMeta struct {
	Title       string
	Description string
	ImageAlt    string
}

// DefaultPageMeta is the copy of the 2025 Christmas booth.
var DefaultPageMeta = PageMeta{
	Title:       "Christmas WebAR Photo Frame 2025",
	Description: "クリスマスのフレームで撮影した写真をシェア！",
	ImageAlt:    "Christmas WebAR captured image",
}

// Links are the absolute URLs of a stored photo.
type Links struct {
	PageURL    string
	ImageURL   string
	PreviewURL string
}

// LinksFor builds the public URLs of p under origin.
func LinksFor(origin string, p db.Photo) Links {
	return Links{
		PageURL:    origin + "/share/" + p.ID,
		ImageURL:   origin + "/uploads/" + p.FileName,
		PreviewURL: origin + "/uploads/" + p.PreviewName,
	}
}

type pageData struct {
	PageMeta
	Links
	Origin         string
	RefreshContent string
	PreviewWidth   int
	PreviewHeight  int
}

// RenderPage writes the share card of p. The page carries OpenGraph and
// Twitter meta for unfurling and immediately refreshes to origin so people
// who open the link land in the booth.
func RenderPage(w io.Writer, meta PageMeta, origin string, p db.Photo) error {
	pw, ph := previewSize(p.Width, p.Height)
	data := pageData{
		PageMeta:       meta,
		Links:          LinksFor(origin, p),
		Origin:         origin,
		RefreshContent: "0; url=" + origin,
		PreviewWidth:   pw,
		PreviewHeight:  ph,
	}
	if err := sharePage.Execute(w, data); err != nil {
		return fmt.Errorf("render share page: %w", err)
	}
	return nil
}
