package content

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/pagewatch/pkg/domain"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
	<title>
		Aktualności   | Klub
	</title>
	<style>body { color: red; }</style>
	<script>var kurs = "hidden";</script>
</head>
<body>
	<nav><a href="/">Home</a></nav>
	<noscript>Enable JavaScript</noscript>
	<!-- kurs in comment -->
	<article>
		<h1>Nowy kurs</h1>
		<p>Zapisy na   kurs prowadzącego strzelanie.</p>
		<p></p>
	</article>
	<template><p>template kurs</p></template>
</body>
</html>`

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Club &amp; News</title>
		<link>https://example.com</link>
		<description>club news</description>
		<item>
			<title>New match found</title>
			<link>https://example.com/1</link>
			<description><![CDATA[<p>Details about the <b>match</b> &amp; more</p>]]></description>
		</item>
		<item>
			<title>Announcement</title>
			<link>https://example.com/2</link>
			<description>Plain text description</description>
		</item>
	</channel>
</rss>`

const testAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom News</title>
	<link href="https://example.com/"/>
	<updated>2006-01-02T15:04:05Z</updated>
	<entry>
		<title>Atom Entry 1</title>
		<link href="https://example.com/entry1"/>
		<id>entry1</id>
		<updated>2006-01-02T15:04:05Z</updated>
		<summary>Entry 1 summary</summary>
	</entry>
</feed>`

func rawPage(body string) *domain.RawPage {
	return &domain.RawPage{URL: "https://example.com/news", Body: []byte(body), StatusCode: 200, FetchedAt: time.Now()}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	for _, s := range []string{"auto", "HTML", " article ", "feed"} {
		_, err := ParseMode(s)
		assert.NoError(t, err, s)
	}

	_, err = ParseMode("pdf")
	assert.Error(t, err)
}

func TestExtractor_HTML(t *testing.T) {
	page := rawPage(testPage)
	snap, err := NewExtractor(ModeHTML).Extract(page)
	require.NoError(t, err)

	assert.Equal(t, "Aktualności | Klub", snap.Title)
	assert.Equal(t, page.URL, snap.URL)
	assert.Equal(t, page.FetchedAt, snap.FetchedAt)
	assert.Contains(t, snap.BodyText, "Nowy kurs")
	assert.Contains(t, snap.BodyText, "Zapisy na   kurs prowadzącego strzelanie.")
	assert.Contains(t, snap.BodyText, "Home")
	assert.NotContains(t, snap.BodyText, "color: red")
	assert.NotContains(t, snap.BodyText, "hidden")
	assert.NotContains(t, snap.BodyText, "Enable JavaScript")
	assert.NotContains(t, snap.BodyText, "in comment")
	assert.NotContains(t, snap.BodyText, "template kurs")

	for _, line := range strings.Split(snap.BodyText, "\n") {
		assert.NotEmpty(t, line)
		assert.Equal(t, strings.TrimSpace(line), line)
	}
}

func TestExtractor_HTMLNoTitle(t *testing.T) {
	snap, err := NewExtractor(ModeHTML).Extract(rawPage("<html><body><p>only text</p></body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/news", snap.Title, "url used as title")
	assert.Equal(t, "only text", snap.BodyText)
}

func TestExtractor_Feed(t *testing.T) {
	t.Run("rss", func(t *testing.T) {
		snap, err := NewExtractor(ModeFeed).Extract(rawPage(testRSS))
		require.NoError(t, err)
		assert.Equal(t, "Club & News", snap.Title)
		assert.Equal(t, "New match found\nDetails about the match & more\nAnnouncement\nPlain text description", snap.BodyText)
	})

	t.Run("atom", func(t *testing.T) {
		snap, err := NewExtractor(ModeFeed).Extract(rawPage(testAtom))
		require.NoError(t, err)
		assert.Equal(t, "Atom News", snap.Title)
		assert.Equal(t, "Atom Entry 1\nEntry 1 summary", snap.BodyText)
	})

	t.Run("not a feed", func(t *testing.T) {
		_, err := NewExtractor(ModeFeed).Extract(rawPage(testPage))
		require.Error(t, err)
		var pe *domain.ParseError
		assert.True(t, errors.As(err, &pe))
	})
}

func TestExtractor_Auto(t *testing.T) {
	ex := NewExtractor("")
	assert.Equal(t, ModeAuto, ex.mode)

	snap, err := ex.Extract(rawPage(testRSS))
	require.NoError(t, err)
	assert.Equal(t, "Club & News", snap.Title, "rss detected as feed")

	snap, err = ex.Extract(rawPage(testPage))
	require.NoError(t, err)
	assert.Equal(t, "Aktualności | Klub", snap.Title, "html detected as html")

	page := rawPage(testAtom)
	page.ContentType = "application/atom+xml; charset=utf-8"
	assert.Equal(t, ModeFeed, ex.resolveMode(page), "feed by content type")
	page = rawPage(testPage)
	page.ContentType = "text/html"
	assert.Equal(t, ModeHTML, ex.resolveMode(page))
	assert.Equal(t, ModeArticle, NewExtractor(ModeArticle).resolveMode(page), "explicit mode kept")
}

func TestExtractor_Article(t *testing.T) {
	page := rawPage(`<!DOCTYPE html>
<html>
<head><title>Club Article</title></head>
<body>
	<article>
		<h1>Shooting course announcement</h1>
		<p>The club announces a new shooting course for range officers starting next month.
		Registration is open for all members who hold a valid license and want to extend their qualifications.</p>
		<p>Participants will learn safety procedures, range commands and first aid. The course ends
		with a practical exam and a written test held at the club range.</p>
	</article>
</body>
</html>`)

	snap, err := NewExtractor(ModeArticle).Extract(page)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Title)
	assert.Contains(t, snap.BodyText, "new shooting course")
}

func TestExtractor_Errors(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		page *domain.RawPage
	}{
		{name: "nil page", mode: ModeHTML, page: nil},
		{name: "empty body", mode: ModeHTML, page: rawPage("")},
		{name: "whitespace body", mode: ModeAuto, page: rawPage("  \n\t ")},
		{name: "broken feed", mode: ModeFeed, page: rawPage("<rss><channel><item>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExtractor(tt.mode).Extract(tt.page)
			require.Error(t, err)
			var pe *domain.ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestExtractor_NoVisibleText(t *testing.T) {
	page := rawPage("<html><head><title>Empty</title><script>kurs()</script></head><body> </body></html>")
	snap, err := NewExtractor(ModeHTML).Extract(page)
	require.NoError(t, err)
	assert.Equal(t, "Empty", snap.Title)
	assert.Empty(t, snap.BodyText)
}

func TestExtractor_Charset(t *testing.T) {
	// "Kurs prowadzącego" in ISO-8859-2, 0xb1 is "ą"
	body := "<html><head><title>x</title></head><body><p>Kurs prowadz\xb1cego</p></body></html>"

	t.Run("charset from content type", func(t *testing.T) {
		page := rawPage(body)
		page.ContentType = "text/html; charset=iso-8859-2"
		snap, err := NewExtractor(ModeHTML).Extract(page)
		require.NoError(t, err)
		assert.Equal(t, "x\nKurs prowadzącego", snap.BodyText)
		assert.True(t, utf8.ValidString(snap.BodyText))
	})

	t.Run("charset from meta tag", func(t *testing.T) {
		page := rawPage(`<html><head><meta charset="iso-8859-2"></head><body><p>Kurs prowadz` + "\xb1" + `cego</p></body></html>`)
		snap, err := NewExtractor(ModeAuto).Extract(page)
		require.NoError(t, err)
		assert.Contains(t, snap.BodyText, "Kurs prowadzącego")
	})

	t.Run("utf-8 without declared charset", func(t *testing.T) {
		snap, err := NewExtractor(ModeHTML).Extract(rawPage("<html><body><p>Kurs prowadzącego</p></body></html>"))
		require.NoError(t, err)
		assert.Equal(t, "Kurs prowadzącego", snap.BodyText)
	})
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a\nb c\nd", normalizeText("  a \n\n\t b c \n   \nd\n"))
	assert.Empty(t, normalizeText(" \n \n"))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "", stripTags(""))
	assert.Equal(t, "bold & text", stripTags("<b>bold</b> &amp; text"))
	assert.Equal(t, "one\ntwo", stripTags("one<br/>two"))
	assert.Equal(t, `quote "x"`, stripTags(`quote "x"`))
}
