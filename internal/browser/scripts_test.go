package browser

import (
	"encoding/json"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryAllScript_SnapshotsElements(t *testing.T) {
	selector := `tr.lista2 > td:nth-child(2) > a[href^="/torrent/"]`

	vm := goja.New()
	_, err := vm.RunString(`
		var asked = null;
		var document = {
			querySelectorAll: function (sel) {
				asked = sel;
				return [
					{ attributes: [{ name: "href", value: "/torrent/a" }, { name: "title", value: "A" }], textContent: "First" },
					{ attributes: [], textContent: null },
				];
			},
		};`)
	require.NoError(t, err)

	v, err := vm.RunString("JSON.stringify(" + QueryAllScript(selector) + ")")
	require.NoError(t, err)

	var got []Element
	require.NoError(t, json.Unmarshal([]byte(v.String()), &got))
	require.Len(t, got, 2)

	href, ok := got[0].Attr("href")
	assert.True(t, ok)
	assert.Equal(t, "/torrent/a", href)
	assert.Equal(t, "First", got[0].Text)
	assert.Empty(t, got[1].Text)
	_, ok = got[1].Attr("href")
	assert.False(t, ok)

	assert.Equal(t, selector, vm.Get("asked").String())
}

func TestAsFunction(t *testing.T) {
	fn := asFunction("  document.title \n")
	assert.Equal(t, "() => document.title", fn)
	_, err := goja.Compile("fn.js", "("+fn+")", false)
	assert.NoError(t, err)
}
