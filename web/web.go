// Package web holds the HTML page shells the server renders.
package web

import "embed"

// Templates contains base.html and page.html.
//
//go:embed templates/*.html
var Templates embed.FS
