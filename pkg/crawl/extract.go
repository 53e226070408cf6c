package crawl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"img-scraper/pkg/models"
	"img-scraper/pkg/parse"
)

// lazy-loading attributes checked in order; the first non-empty wins
var imgSrcAttrs = []string{"src", "data-src", "data-lazy-src"}

var backgroundImageRe = regexp.MustCompile(`background(?:-image)?\s*:\s*url\(\s*['"]?([^'")]+?)['"]?\s*\)`)

const maxCaptionLength = 200

// imageCandidate is one image reference found on a page, before filtering.
// Tag is nil for images found in CSS rather than <img> elements.
type imageCandidate struct {
	absURL string
	meta   models.ImageMeta
	tag    *goquery.Selection
}

// extractImages collects every image reference from the rendered document:
// <img> elements (including lazy-loading attribute variants) and CSS
// background-image declarations in style attributes and <style> blocks.
func extractImages(doc *goquery.Document, base *url.URL) []imageCandidate {
	var candidates []imageCandidate
	seen := make(map[string]struct{})

	add := func(absURL string, meta models.ImageMeta, tag *goquery.Selection) {
		if absURL == "" {
			return
		}
		if _, dup := seen[absURL]; dup {
			return
		}
		seen[absURL] = struct{}{}
		candidates = append(candidates, imageCandidate{absURL: absURL, meta: meta, tag: tag})
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		var src string
		for _, attr := range imgSrcAttrs {
			if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
				src = strings.TrimSpace(v)
				break
			}
		}
		if src == "" {
			return
		}
		add(parse.ResolveURL(base, src), harvestMeta(sel), sel)
	})

	// background-image in inline style attributes
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		for _, m := range backgroundImageRe.FindAllStringSubmatch(style, -1) {
			add(parse.ResolveURL(base, m[1]), models.ImageMeta{}, nil)
		}
	})

	// background-image in <style> blocks
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		for _, m := range backgroundImageRe.FindAllStringSubmatch(sel.Text(), -1) {
			add(parse.ResolveURL(base, m[1]), models.ImageMeta{}, nil)
		}
	})

	return candidates
}

// harvestMeta pulls alt text, title, and a caption from an <img> element.
// The caption comes from an enclosing <figure>'s <figcaption> when present,
// otherwise from a short adjacent sibling text block.
func harvestMeta(sel *goquery.Selection) models.ImageMeta {
	meta := models.ImageMeta{}
	if alt, ok := sel.Attr("alt"); ok {
		meta.AltText = strings.TrimSpace(alt)
	}
	if title, ok := sel.Attr("title"); ok {
		meta.Title = strings.TrimSpace(title)
	}

	figure := sel.Closest("figure")
	if figure.Length() > 0 {
		figcaption := figure.Find("figcaption").First()
		if figcaption.Length() > 0 {
			meta.HTMLCaption = strings.TrimSpace(figcaption.Text())
		}
	}
	if meta.HTMLCaption == "" {
		if text := strings.TrimSpace(sel.Next().Text()); text != "" && len(text) < maxCaptionLength {
			meta.HTMLCaption = text
		}
	}
	return meta
}

// extractLinks returns resolved http(s) hyperlinks from the document.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved := parse.ResolveURL(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}
