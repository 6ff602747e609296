package ingest

import (
	"encoding/hex"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/blake2b"
)

const (
	maxSlugLength    = 60
	maxEntrySlugPart = 40
	maxTitleLength   = 250
)

var (
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces     = regexp.MustCompile(`\s+`)
	truncMarker    = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)
	textPolicy     = bluemonday.StrictPolicy()
)

// Slugify 将标题转为小写，仅保留字母、数字、空格与连字符，并以连字符连接单词。
func Slugify(title string) string {
	slug := slugDisallowed.ReplaceAllString(strings.ToLower(title), "")
	slug = slugSpaces.ReplaceAllString(strings.TrimSpace(slug), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	return slug
}

// EntryID 由 slug 与文章 URL 生成稳定的 CMS 条目 ID，同一篇文章总是对应同一个条目。
func EntryID(slug, articleURL string) string {
	part := slug
	if len(part) > maxEntrySlugPart {
		part = part[:maxEntrySlugPart]
	}
	part = strings.Trim(part, "-")
	if part == "" {
		part = "article"
	}
	sum := blake2b.Sum256([]byte(strings.TrimSpace(articleURL)))
	return "auto-" + part + "-" + hex.EncodeToString(sum[:8])
}

// CleanText 去除 HTML 标记以及 NewsAPI 的 "[+N chars]" 截断标记。
func CleanText(raw string) string {
	text := html.UnescapeString(textPolicy.Sanitize(raw))
	text = truncMarker.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
