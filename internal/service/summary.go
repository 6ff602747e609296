package service

import (
	"bytes"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const (
	maxTitleLength       = 200
	maxSummaryLength     = 500
	derivedSummaryLength = 200
)

var (
	markdownRenderer = goldmark.New()
	plainTextPolicy  = bluemonday.StrictPolicy()
)

// PlainText renders markdown content and strips every tag, collapsing whitespace.
func PlainText(content string) string {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(content), &buf); err != nil {
		buf.Reset()
		buf.WriteString(content)
	}
	text := html.UnescapeString(plainTextPolicy.Sanitize(buf.String()))
	return strings.Join(strings.Fields(text), " ")
}

// DeriveSummary 在作者未填写摘要时从正文生成摘要。
func DeriveSummary(content string) string {
	return truncateRunes(PlainText(content), derivedSummaryLength)
}

// truncateRunes cuts at a word boundary and appends "..." when text exceeds max runes.
func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max-3])
	if idx := strings.LastIndex(cut, " "); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "..."
}
