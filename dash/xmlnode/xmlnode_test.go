package xmlnode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/mpdq/dash/xmlnode"
)

func TestParse(t *testing.T) {
	t.Parallel()

	doc := []byte(`<?xml version="1.0"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="loc" type="static">
  <BaseURL serviceLocation="a">http://cdn/<!-- c -->path/</BaseURL>
  <Period id="p0"><AdaptationSet/></Period>
</MPD>`)

	root, err := xmlnode.Parse(doc)
	require.NoError(t, err)

	assert.Equal(t, "MPD", root.Name())

	typ, ok := root.Attr("type")
	assert.True(t, ok)
	assert.Equal(t, "static", typ)

	loc, ok := root.Attr("schemaLocation")
	assert.True(t, ok)
	assert.Equal(t, "loc", loc)

	_, ok = root.Attr("missing")
	assert.False(t, ok)

	ns, ok := root.Namespace("")
	assert.True(t, ok)
	assert.Equal(t, "urn:mpeg:dash:schema:mpd:2011", ns)

	ns, ok = root.Namespace("xsi")
	assert.True(t, ok)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema-instance", ns)

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "BaseURL", children[0].Name())
	assert.Equal(t, "http://cdn/path/", children[0].Text())
	assert.Equal(t, "Period", children[1].Name())
	require.Len(t, children[1].Children(), 1)

	inherited, ok := children[1].Namespace("xsi")
	assert.True(t, ok)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema-instance", inherited)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "not xml", doc: "#EXTM3U\n"},
		{name: "unclosed", doc: "<MPD><Period></MPD>"},
		{name: "two roots", doc: "<MPD/><MPD/>"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := xmlnode.Parse([]byte(test.doc))
			assert.Error(t, err)
		})
	}
}
