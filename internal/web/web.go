package web

import _ "embed"

// IndexHTML is the embedded single-page jam UI.
//
//go:embed index.html
var IndexHTML []byte
