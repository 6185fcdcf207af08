// Package feed serves RSS and Atom feeds of the published documents.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const maxItems = 20

// Documents lists every stored document.
type Documents interface {
	ListDocsWithContent(ctx context.Context) ([]*store.Document, error)
}

type Site struct {
	URL         string
	Name        string
	Description string
}

type Handler struct {
	docs   Documents
	site   Site
	md     goldmark.Markdown
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(docs Documents, site Site, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		docs:   docs,
		site:   site,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger: logger.Named("Feed"),
		now:    time.Now,
	}
}

// RegisterRoutes mounts RSS and Atom feed endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/feed", func(c *gin.Context) { h.render(c, c.DefaultQuery("type", "rss")) })
	rg.GET("/feed.xml", func(c *gin.Context) { h.render(c, "rss") })
	rg.GET("/atom.xml", func(c *gin.Context) { h.render(c, "atom") })
}

type item struct {
	Title   string
	Link    string
	GUID    string
	PubDate time.Time
	Content string
}

func (h *Handler) render(c *gin.Context, kind string) {
	items, err := h.items(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	switch kind {
	case "atom":
		c.Header("Content-Type", "application/atom+xml; charset=utf-8")
		c.String(200, h.buildAtom(items))
	default:
		c.Header("Content-Type", "application/rss+xml; charset=utf-8")
		c.String(200, h.buildRSS(items))
	}
}

// items returns the newest published documents, newest first.
func (h *Handler) items(ctx context.Context) ([]item, error) {
	docs, err := h.docs.ListDocsWithContent(ctx)
	if err != nil {
		return nil, err
	}
	var items []item
	for _, d := range docs {
		if d.Status() != store.StatusPublished {
			continue
		}
		title, _ := d.Meta.GetString(store.MetaTitle)
		if title == "" {
			title = d.Path
		}
		var html bytes.Buffer
		if err := h.md.Convert([]byte(d.Content), &html); err != nil {
			h.logger.Warn("render failed", zap.String("path", d.Path), zap.Error(err))
			html.Reset()
			html.WriteString(escapeXML(d.Content))
		}
		items = append(items, item{
			Title:   title,
			Link:    DocumentURL(h.site.URL, d.Path),
			GUID:    d.UID(),
			PubDate: metaTime(d, store.MetaCreatedAt),
			Content: html.String(),
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].PubDate.After(items[j].PubDate) })
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

func (h *Handler) buildRSS(items []item) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>%s</title>
    <link>%s</link>
    <description>%s</description>
    <lastBuildDate>%s</lastBuildDate>
`, escapeXML(h.site.Name), escapeXML(h.site.URL), escapeXML(h.site.Description), h.now().Format(time.RFC1123Z))
	for _, it := range items {
		fmt.Fprintf(&b, `    <item>
      <title>%s</title>
      <link>%s</link>
      <guid isPermaLink="false">%s</guid>
      <pubDate>%s</pubDate>
      <description><![CDATA[%s]]></description>
    </item>
`, escapeXML(it.Title), escapeXML(it.Link), escapeXML(it.GUID), it.PubDate.Format(time.RFC1123Z), cdata(it.Content))
	}
	b.WriteString("  </channel>\n</rss>")
	return b.String()
}

func (h *Handler) buildAtom(items []item) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>%s</title>
  <subtitle>%s</subtitle>
  <link href="%s"/>
  <updated>%s</updated>
  <id>%s</id>
`, escapeXML(h.site.Name), escapeXML(h.site.Description), escapeXML(h.site.URL), h.now().Format(time.RFC3339), escapeXML(h.site.URL))
	for _, it := range items {
		fmt.Fprintf(&b, `  <entry>
    <title>%s</title>
    <link href="%s"/>
    <id>urn:uuid:%s</id>
    <updated>%s</updated>
    <content type="html"><![CDATA[%s]]></content>
  </entry>
`, escapeXML(it.Title), escapeXML(it.Link), escapeXML(it.GUID), it.PubDate.Format(time.RFC3339), cdata(it.Content))
	}
	b.WriteString("</feed>")
	return b.String()
}

// DocumentURL is the public address of a document: the site URL followed by
// the document path without its extension.
func DocumentURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimSuffix(path, store.DocExt)
}

func metaTime(d *store.Document, key string) time.Time {
	raw, _ := d.Meta.GetString(key)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeXML(s string) string { return xmlEscaper.Replace(s) }

// cdata splits any "]]>" so the content cannot close the section early.
func cdata(s string) string { return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") }
