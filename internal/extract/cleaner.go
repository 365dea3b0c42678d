package extract

import (
	"regexp"
	"strings"
)

// Reader services return Markdown; the detection model wants plain prose.
// The rules run in order: block-level noise first, then inline markup,
// then whitespace normalization.
var (
	reFrontMatter = regexp.MustCompile(`(?ms)^---.*?---\n?`)
	reFencedCode  = regexp.MustCompile("(?s)```.*?```")
	reInlineCode  = regexp.MustCompile("`[^`]+`")
	reHTMLTag     = regexp.MustCompile(`(?s)<[^>]+>`)
	reMDLink      = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	reHeading     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBoldStars   = regexp.MustCompile(`(?s)\*{1,3}(.*?)\*{1,3}`)
	reBoldUnder   = regexp.MustCompile(`(?s)_{1,3}(.*?)_{1,3}`)
	reBlockquote  = regexp.MustCompile(`(?m)^>\s?`)
	reHRule       = regexp.MustCompile(`(?m)^(\s*[-*_]){3,}\s*$`)
	reTableRow    = regexp.MustCompile(`(?m)^\|.*\|$`)
	reTableSep    = regexp.MustCompile(`(?m)^[|\s\-:]+$`)
	reMetaLine    = regexp.MustCompile(`(?mi)^(Source|URL|Title|Description|Published|Author|Date|Tags):\s.*$`)
	reOnlyURL     = regexp.MustCompile(`(?m)^\s*(https?://\S+|www\.\S+)\s*$`)
	reOnlyPunct   = regexp.MustCompile(`(?m)^\s*[\W_]+\s*$`)
	reMultiBlank  = regexp.MustCompile(`\n{3,}`)

	reTitleMeta    = regexp.MustCompile(`(?mi)^Title:\s*(.+)$`)
	reTitleHeading = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// CleanMarkdown strips markup and noise, leaving plain readable text.
// Returns ErrNoText when nothing readable remains.
func CleanMarkdown(markdown string) (string, error) {
	text := markdown

	text = reFrontMatter.ReplaceAllString(text, "")
	text = reFencedCode.ReplaceAllString(text, "")
	text = reInlineCode.ReplaceAllString(text, "")
	text = reHTMLTag.ReplaceAllString(text, "")

	// Links and images: keep only the visible label.
	text = reMDLink.ReplaceAllString(text, "$1")

	text = reHeading.ReplaceAllString(text, "")

	// Emphasis: keep the inner text.
	text = reBoldStars.ReplaceAllString(text, "$1")
	text = reBoldUnder.ReplaceAllString(text, "$1")

	text = reBlockquote.ReplaceAllString(text, "")
	text = reHRule.ReplaceAllString(text, "")
	text = reTableRow.ReplaceAllString(text, "")
	text = reTableSep.ReplaceAllString(text, "")
	text = reMetaLine.ReplaceAllString(text, "")
	text = reOnlyURL.ReplaceAllString(text, "")
	text = reOnlyPunct.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = reMultiBlank.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Title pulls a document title out of raw Markdown: a reader metadata line
// first, then the first top-level heading.
func Title(markdown string) string {
	if m := reTitleMeta.FindStringSubmatch(markdown); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := reTitleHeading.FindStringSubmatch(markdown); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
