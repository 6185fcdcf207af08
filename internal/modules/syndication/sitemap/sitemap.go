// Package sitemap serves sitemap.xml for the published documents.
package sitemap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/modules/syndication/feed"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

func RegisterRoutes(rg *gin.RouterGroup, docs feed.Documents, baseURL string) {
	render := func(c *gin.Context) {
		xml, err := build(c.Request.Context(), docs, baseURL, time.Now())
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Type", "application/xml; charset=utf-8")
		c.String(200, xml)
	}
	rg.GET("/sitemap.xml", render)
	rg.GET("/sitemap", render)
}

type sitemapURL struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

func build(ctx context.Context, docs feed.Documents, base string, now time.Time) (string, error) {
	all, err := docs.ListDocsWithContent(ctx)
	if err != nil {
		return "", err
	}

	urls := []sitemapURL{{Loc: strings.TrimRight(base, "/") + "/", LastMod: now, ChangeFreq: "daily", Priority: 1.0}}
	for _, d := range all {
		if d.Status() != store.StatusPublished {
			continue
		}
		updated, _ := d.Meta.GetString(store.MetaUpdatedAt)
		lastMod, err := time.Parse(time.RFC3339, updated)
		if err != nil {
			lastMod = now
		}
		urls = append(urls, sitemapURL{
			Loc:        feed.DocumentURL(base, d.Path),
			LastMod:    lastMod,
			ChangeFreq: "weekly",
			Priority:   0.8,
		})
	}
	return renderXML(urls), nil
}

func renderXML(urls []sitemapURL) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	for _, u := range urls {
		fmt.Fprintf(&b, `  <url>
    <loc>%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, escapeXML(u.Loc), u.LastMod.Format("2006-01-02"), u.ChangeFreq, u.Priority)
	}
	b.WriteString(`</urlset>`)
	return b.String()
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeXML(s string) string { return escaper.Replace(s) }
