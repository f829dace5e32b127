// Package web embeds the HTML templates so the binary has no runtime file
// dependencies.
package web

import "embed"

// Templates holds base.html plus one file per page.
//
//go:embed templates/*.html
var Templates embed.FS
