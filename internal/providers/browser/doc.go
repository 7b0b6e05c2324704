/*
Package browser provides the page capability used by understanding and extraction.

# Overview

Everything above this package talks to a Page. A Page answers structural
questions about one loaded document: a summary for zone identification,
zone samples for selector generation, element snapshots with bounds, item
field values, links, outer HTML, screenshots, and script evaluation.

# Implementations

  - StaticPage: parsed HTML. CSS anchors go through goquery, anchors that
    start with "/" are XPath and go through htmlquery. Non UTF-8 input is
    decoded with the Content-Type charset or chardet detection. Bounds come
    from data-bounds="top,left,width,height" attributes, otherwise from a
    synthetic layout of one line per element in document order.
    Evaluate runs in a goja sandbox (see the sandbox package).
  - RodPage: a live Chrome tab over go-rod. Queries run against a snapshot
    of the rendered DOM with real geometry stamped into data-bounds, so
    both implementations share one query engine.

Fetcher loads a URL over HTTP into a StaticPage.

# Scripts

Evaluate takes a function body. The body sees args and document and must
return its result:

	v, err := page.Evaluate(ctx, `return document.querySelectorAll(args.sel).length;`,
		map[string]any{"sel": ".card"})
*/
package browser
