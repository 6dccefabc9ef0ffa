package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// queryAllTemplate snapshots every element matching a selector into
// {attrs, text} records in a single round trip.
const queryAllTemplate = `(() => Array.from(document.querySelectorAll(%s)).map(e => {
	const attrs = {};
	for (const a of e.attributes) { attrs[a.name] = a.value; }
	return { attrs: attrs, text: e.textContent || "" };
}))()`

// QueryAllScript returns the expression used by engines to implement QueryAll.
func QueryAllScript(selector string) string {
	quoted, _ := json.Marshal(selector)
	return fmt.Sprintf(queryAllTemplate, quoted)
}

// asFunction turns an expression into an arrow function body, which rod's
// Eval expects.
func asFunction(expr string) string {
	expr = strings.TrimSpace(expr)
	return "() => " + expr
}
