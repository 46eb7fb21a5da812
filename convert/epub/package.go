package epub

import (
	"archive/zip"
	"fmt"
	"path"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"jrr/common"
	"jrr/config"
	"jrr/content"
)

const (
	tocTitleEn = "Table Of Contents"
	tocTitleAr = "الفهرس"
)

func tocTitle(c *content.Content) string {
	if content.IsArabic(c.Language) {
		return tocTitleAr
	}
	return tocTitleEn
}

// bookID is stable for the same store book, so regenerated files replace
// each other in reader libraries.
func bookID(c *content.Content) string {
	var id string
	if c.Book != nil {
		id = c.Book.ID
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("jrr:book:"+id)).String()
}

func bookTitle(c *content.Content) string {
	if c.Book != nil && c.Book.Title != "" {
		return c.Book.Title
	}
	return "Untitled"
}

func writeOPF(zw *zip.Writer, c *content.Content, chapters []chapterData, res *resources) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("unique-identifier", "BookId")
	pkg.CreateAttr("version", "3.0")
	pkg.CreateAttr("xml:lang", c.Language)
	if c.RTL {
		pkg.CreateAttr("dir", "rtl")
	}

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	dcIdentifier := metadata.CreateElement("dc:identifier")
	dcIdentifier.CreateAttr("id", "BookId")
	dcIdentifier.SetText(bookID(c))

	metadata.CreateElement("dc:title").SetText(bookTitle(c))
	metadata.CreateElement("dc:language").SetText(c.Language)

	if c.Book != nil {
		for idx, author := range c.Book.Authors {
			creatorID := fmt.Sprintf("creator%d", idx)
			dcCreator := metadata.CreateElement("dc:creator")
			dcCreator.CreateAttr("id", creatorID)
			dcCreator.SetText(author)

			roleMeta := metadata.CreateElement("meta")
			roleMeta.CreateAttr("refines", "#"+creatorID)
			roleMeta.CreateAttr("property", "role")
			roleMeta.CreateAttr("scheme", "marc:relators")
			roleMeta.SetText("aut")
		}
		if c.Book.Publisher != "" {
			metadata.CreateElement("dc:publisher").SetText(c.Book.Publisher)
		}
	}

	// EPUB2 readers look for cover through meta
	if res.cover != nil {
		meta := metadata.CreateElement("meta")
		meta.CreateAttr("name", "cover")
		meta.CreateAttr("content", coverImageID)
	}

	modifiedMeta := metadata.CreateElement("meta")
	modifiedMeta.CreateAttr("property", "dcterms:modified")
	modifiedMeta.SetText(time.Now().UTC().Format("2006-01-02T15:04:05Z"))

	manifest := pkg.CreateElement("manifest")
	addItem := func(id, href, mediaType, properties string) {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", id)
		item.CreateAttr("href", href)
		item.CreateAttr("media-type", mediaType)
		if properties != "" {
			item.CreateAttr("properties", properties)
		}
	}

	addItem("nav", navHref, "application/xhtml+xml", "nav")
	addItem("ncx", ncxHref, "application/x-dtbncx+xml", "")
	if res.cover != nil {
		addItem("cover-page", coverPageHref, "application/xhtml+xml", "svg")
	}
	for _, chapter := range chapters {
		addItem(chapter.ID, chapter.Filename, "application/xhtml+xml", "")
	}
	for _, r := range res.items {
		addItem(r.ID, r.Href, r.MediaType, r.Properties)
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	if c.RTL {
		spine.CreateAttr("page-progression-direction", "rtl")
	}
	if res.cover != nil {
		spine.CreateElement("itemref").CreateAttr("idref", "cover-page")
	}
	for _, chapter := range chapters {
		spine.CreateElement("itemref").CreateAttr("idref", chapter.ID)
	}
	navRef := spine.CreateElement("itemref")
	navRef.CreateAttr("idref", "nav")
	navRef.CreateAttr("linear", "no")

	guide := pkg.CreateElement("guide")
	if res.cover != nil {
		coverRef := guide.CreateElement("reference")
		coverRef.CreateAttr("type", "cover")
		coverRef.CreateAttr("title", "Cover")
		coverRef.CreateAttr("href", coverPageHref)
	}
	tocRef := guide.CreateElement("reference")
	tocRef.CreateAttr("type", "toc")
	tocRef.CreateAttr("title", tocTitle(c))
	tocRef.CreateAttr("href", navHref)
	if len(chapters) > 0 {
		startRef := guide.CreateElement("reference")
		startRef.CreateAttr("type", "text")
		startRef.CreateAttr("title", "Start")
		startRef.CreateAttr("href", chapters[0].Filename)
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "content.opf"), doc)
}

func writeNCX(zw *zip.Writer, c *content.Content, chapters []chapterData) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")
	ncx.CreateAttr("xml:lang", c.Language)

	head := ncx.CreateElement("head")
	for _, m := range [][2]string{
		{"dtb:uid", bookID(c)},
		{"dtb:depth", "1"},
		{"dtb:totalPageCount", "0"},
		{"dtb:maxPageNumber", "0"},
	} {
		meta := head.CreateElement("meta")
		meta.CreateAttr("name", m[0])
		meta.CreateAttr("content", m[1])
	}

	ncx.CreateElement("docTitle").CreateElement("text").SetText(bookTitle(c))

	navMap := ncx.CreateElement("navMap")
	for i, chapter := range chapters {
		navPoint := navMap.CreateElement("navPoint")
		navPoint.CreateAttr("id", "nav-"+chapter.ID)
		navPoint.CreateAttr("playOrder", fmt.Sprintf("%d", i+1))

		navPoint.CreateElement("navLabel").CreateElement("text").SetText(chapter.Title)
		navPoint.CreateElement("content").CreateAttr("src", chapter.Filename)
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, ncxHref), doc)
}

func writeNav(zw *zip.Writer, c *content.Content, chapters []chapterData) error {
	title := tocTitle(c)
	doc, body := createXHTMLDocument(c, title, "")

	nav := body.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateAttr("role", "doc-toc")

	nav.CreateElement("h1").SetText(title)
	ol := nav.CreateElement("ol")
	for _, chapter := range chapters {
		a := ol.CreateElement("li").CreateElement("a")
		a.CreateAttr("href", chapter.Filename)
		a.SetText(chapter.Title)
	}

	landmarks := body.CreateElement("nav")
	landmarks.CreateAttr("epub:type", "landmarks")
	landmarks.CreateAttr("id", "landmarks")
	landmarks.CreateAttr("hidden", "")
	landmarks.CreateElement("h2").SetText("Landmarks")
	lol := landmarks.CreateElement("ol")
	addLandmark := func(kind, href, text string) {
		a := lol.CreateElement("li").CreateElement("a")
		a.CreateAttr("epub:type", kind)
		a.CreateAttr("href", href)
		a.SetText(text)
	}
	addLandmark("toc", navHref, title)
	if len(chapters) > 0 {
		addLandmark("bodymatter", chapters[0].Filename, "Start")
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, navHref), doc)
}

func writeCoverPage(zw *zip.Writer, c *content.Content, res *resources, cfg *config.DocumentConfig) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")

	head := html.CreateElement("head")

	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	style := head.CreateElement("style")
	style.CreateAttr("type", "text/css")
	preserve := "xMidYMid meet"
	if cfg.Cover.Resize == common.ImageResizeModeStretch {
		style.SetText("html, body { margin: 0; padding: 0; width: 100%; height: 100%; } svg { display: block; width: 100%; height: 100%; }")
		preserve = "none"
	} else {
		style.SetText("html, body { margin: 0; padding: 0; width: 100%; height: 100%; } svg { display: block; width: auto; height: 100%; margin: 0 auto }")
	}

	head.CreateElement("title").SetText(bookTitle(c))

	body := html.CreateElement("body")
	body.CreateAttr("epub:type", "cover")

	w, h := res.coverDim.X, res.coverDim.Y
	if w == 0 || h == 0 {
		w, h = cfg.Cover.Width, cfg.Cover.Height
	}
	svg := body.CreateElement("svg")
	svg.CreateAttr("version", "1.1")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("xmlns:xlink", "http://www.w3.org/1999/xlink")
	svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", w, h))
	svg.CreateAttr("preserveAspectRatio", preserve)

	img := svg.CreateElement("image")
	img.CreateAttr("x", "0")
	img.CreateAttr("y", "0")
	img.CreateAttr("width", fmt.Sprintf("%d", w))
	img.CreateAttr("height", fmt.Sprintf("%d", h))
	img.CreateAttr("xlink:href", res.cover.Href)

	return writeXMLToZip(zw, path.Join(oebpsDir, coverPageHref), doc)
}
