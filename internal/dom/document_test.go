package dom

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func gbk(t *testing.T, s string) []byte {
	t.Helper()
	out, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func text(doc *html.Node, selector string) string {
	return goquery.NewDocumentFromNode(doc).Find(selector).First().Text()
}

func TestLoadCharset(t *testing.T) {
	t.Run("transport hint wins and declaration follows", func(t *testing.T) {
		doc, cs, err := Load([]byte(`<meta charset="utf-8"><p>caf`+"\xe9"+`</p>`), "windows-1252")
		require.NoError(t, err)
		assert.Equal(t, "windows-1252", cs)

		declared, _ := GetCharset(doc)
		assert.Equal(t, "windows-1252", declared)
		assert.Equal(t, "café", text(doc, "p"))
	})

	t.Run("in-document declaration without hint", func(t *testing.T) {
		data := append([]byte(`<meta charset="GB2312"><p>`), gbk(t, "中文")...)
		data = append(data, "</p>"...)

		doc, cs, err := Load(data, "")
		require.NoError(t, err)
		assert.Equal(t, "GB2312", cs)
		assert.Equal(t, "中文", text(doc, "p"))
	})

	t.Run("us-ascii hint defers to the document", func(t *testing.T) {
		data := append([]byte(`<meta http-equiv="Content-Type" content="text/html; charset=gbk"><p>`), gbk(t, "中文")...)

		doc, cs, err := Load(data, "US-ASCII")
		require.NoError(t, err)
		assert.Equal(t, "gbk", cs)
		assert.Equal(t, "中文", text(doc, "p"))
	})

	t.Run("invalid declaration is ignored", func(t *testing.T) {
		_, cs, err := Load([]byte(`<meta charset="no-such-charset"><p>x</p>`), "")
		require.NoError(t, err)
		assert.Equal(t, DefaultCharset, cs)
	})

	t.Run("undeclared utf-8", func(t *testing.T) {
		doc, cs, err := Load([]byte(`<p>héllo</p>`), "")
		require.NoError(t, err)
		assert.Equal(t, DefaultCharset, cs)
		assert.Equal(t, "héllo", text(doc, "p"))
	})
}

func TestSerializeCharset(t *testing.T) {
	doc := parse(t, `<p>café 中</p>`)

	out, err := Serialize(doc, "windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "<html><head></head><body><p>caf\xe9 &#20013;</p></body></html>", string(out))

	out, err = Serialize(doc, "")
	require.NoError(t, err)
	assert.Equal(t, "<html><head></head><body><p>café 中</p></body></html>", string(out))

	out, err = Serialize(doc, "no-such-charset")
	require.NoError(t, err)
	assert.Equal(t, "<html><head></head><body><p>café 中</p></body></html>", string(out))
}

func TestValidCharset(t *testing.T) {
	for _, name := range []string{"utf-8", "UTF-8", "GB2312", "windows-1252", "latin1", "Shift_JIS"} {
		assert.True(t, ValidCharset(name), name)
	}
	for _, name := range []string{"", "no-such-charset", "replacement"} {
		assert.False(t, ValidCharset(name), name)
	}
}

func TestLoadTrimsTrailingSpace(t *testing.T) {
	doc, _, err := Load([]byte("<html><body><p>x</p>\n</body></html>\n\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "<html><head></head><body><p>x</p></body></html>", Render(doc))

	doc, _, err = Load([]byte("<pre>\n  x\n</pre>"), "")
	require.NoError(t, err)
	assert.Equal(t, "<html><head></head><body><pre>  x\n</pre></body></html>", Render(doc))
}
