package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanMarkdown_StripsMarkup(t *testing.T) {
	md := `Title: The Future of Writing

# The Future of Writing

Some **bold claims** and _quiet doubts_ about machine prose.

> A blockquote someone added.

- See [the study](https://example.com/study) for details.

` + "```go\nfmt.Println(\"ignored\")\n```" + `

https://example.com/only-a-link
`

	text, err := CleanMarkdown(md)
	require.NoError(t, err)

	assert.Contains(t, text, "bold claims")
	assert.Contains(t, text, "quiet doubts")
	assert.Contains(t, text, "the study")
	assert.Contains(t, text, "A blockquote someone added.")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "```")
	assert.NotContains(t, text, "https://example.com/only-a-link")
	assert.NotContains(t, text, "Title:")
	assert.NotContains(t, text, "#")
}

func TestCleanMarkdown_CollapsesBlankLines(t *testing.T) {
	text, err := CleanMarkdown("first paragraph\n\n\n\n\nsecond paragraph")
	require.NoError(t, err)
	assert.Equal(t, "first paragraph\n\nsecond paragraph", text)
}

func TestCleanMarkdown_NothingLeft(t *testing.T) {
	_, err := CleanMarkdown("```\ncode only\n```\n\n---\n")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestTitle_PrefersMetaLine(t *testing.T) {
	md := "Title: Reader Title\n\n# Heading Title\n\nbody"
	assert.Equal(t, "Reader Title", Title(md))
}

func TestTitle_FallsBackToHeading(t *testing.T) {
	assert.Equal(t, "Heading Title", Title("# Heading Title\n\nbody"))
	assert.Equal(t, "", Title("no title here"))
}
