package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocumentCollectsScripts(t *testing.T) {
	doc, err := parseDocument(`<body>
<script>a()</script>
<script type="text/x-starlark">b()</script>
<script type="text/template"><p>skip</p></script>
<script type="text/javascript; charset=utf-8" src="lib.js"></script>
</body>`)
	require.NoError(t, err)
	require.Len(t, doc.scripts, 3)

	assert.Equal(t, langJavaScript, doc.scripts[0].lang)
	assert.Equal(t, "a()", doc.scripts[0].source)
	assert.Equal(t, langStarlark, doc.scripts[1].lang)
	assert.Equal(t, "lib.js", doc.scripts[2].external)
}

func TestQuerySelector(t *testing.T) {
	doc, err := parseDocument(`<div id="a" class="x y"><p class="y">one</p><p>two</p></div>`)
	require.NoError(t, err)

	tests := []struct {
		selector string
		want     string
	}{
		{"#a", "onetwo"},
		{".y", "onetwo"},
		{"p", "one"},
		{"p.y", "one"},
		{"#nope", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			n := querySelector(doc.root, tt.selector)
			if tt.want == "" {
				assert.Nil(t, n)
				return
			}
			require.NotNil(t, n)
			assert.Equal(t, tt.want, textOf(n))
		})
	}
}

func TestTimerQueueOrder(t *testing.T) {
	var q timerQueue
	var fired []string
	record := func(name string) func() { return func() { fired = append(fired, name) } }

	q.add(time.Hour, false, record("later"))
	q.add(0, false, record("first"))
	cancelled := q.add(0, false, record("cancelled"))
	q.add(0, false, record("second"))
	q.cancel(cancelled)

	for i := 0; i < 3; i++ {
		_, fire, ok := q.next()
		require.True(t, ok)
		fire()
	}
	_, _, ok := q.next()
	assert.False(t, ok)
	assert.Equal(t, []string{"first", "second", "later"}, fired)
}
