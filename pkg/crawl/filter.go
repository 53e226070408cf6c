package crawl

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Heuristics for weeding out thumbnails, icons, and other UI chrome before
// anything is downloaded. URL-level checks run on every candidate; tag-level
// checks additionally run on <img> elements.

const (
	minQuerySizePx = 200 // size hints below this in query params mark a thumbnail
	minTagSizePx   = 100 // declared width/height below this marks a UI asset
)

var thumbnailSubstrings = []string{
	"-thumb", "_thumb", "thumbnail", "-small", "_small", "-tiny", "_tiny",
}

var uiPathSegments = []string{
	"logo", "logos", "icon", "icons", "avatar", "avatars",
	"sprite", "sprites", "banner", "banners", "badge", "badges", "button", "buttons",
}

var uiKeywords = []string{
	"logo", "icon", "sprite", "avatar", "badge", "banner", "thumbnail", "spinner", "tracking-pixel",
	"ad-", "promo", "nav",
}

// e.g. photo-150x150.jpg: WordPress-style size-coded thumbnail names
var sizeCodedNameRe = regexp.MustCompile(`[-_](\d{1,4})x(\d{1,4})\.[a-z]+$`)

var sizeQueryParams = []string{"w", "width", "h", "height", "s", "size"}

var squareIconSizes = map[int]bool{16: true, 20: true, 24: true, 32: true, 48: true, 64: true}

// allowImageURL applies the URL-level filter chain. allowedExtensions holds
// lowercase extensions without the leading dot.
func allowImageURL(rawURL string, allowedExtensions []string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	lowerPath := strings.ToLower(parsed.Path)

	// Extension allow-list. Extension-less URLs pass; dynamic image
	// endpoints are common on CDNs and the decode check catches impostors.
	if ext := strings.TrimPrefix(path.Ext(lowerPath), "."); ext != "" {
		ok := false
		for _, allowed := range allowedExtensions {
			if ext == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	lowerURL := strings.ToLower(rawURL)
	for _, marker := range thumbnailSubstrings {
		if strings.Contains(lowerURL, marker) {
			return false
		}
	}

	if m := sizeCodedNameRe.FindStringSubmatch(lowerPath); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w < minQuerySizePx && h < minQuerySizePx {
			return false
		}
	}

	for _, segment := range strings.Split(lowerPath, "/") {
		for _, ui := range uiPathSegments {
			if segment == ui {
				return false
			}
		}
	}

	query := parsed.Query()
	for _, param := range sizeQueryParams {
		v := query.Get(param)
		if v == "" {
			continue
		}
		if n, ok := leadingInt(v); ok && n < minQuerySizePx {
			return false
		}
	}

	return true
}

// allowImageTag applies tag-level heuristics to an <img> element.
func allowImageTag(sel *goquery.Selection) bool {
	if sel == nil {
		return true
	}

	width, hasWidth := intAttr(sel, "width")
	height, hasHeight := intAttr(sel, "height")

	if (hasWidth && width < minTagSizePx) || (hasHeight && height < minTagSizePx) {
		return false
	}
	if hasWidth && hasHeight && width == height && squareIconSizes[width] {
		return false
	}

	haystack := strings.ToLower(strings.Join([]string{
		sel.AttrOr("class", ""),
		sel.AttrOr("id", ""),
		sel.AttrOr("alt", ""),
	}, " "))
	for _, keyword := range uiKeywords {
		if strings.Contains(haystack, keyword) {
			return false
		}
	}

	return true
}

func intAttr(sel *goquery.Selection, name string) (int, bool) {
	v, ok := sel.Attr(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// leadingInt parses the run of digits at the start of s, so values like
// "150px" still read as a size hint.
func leadingInt(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
