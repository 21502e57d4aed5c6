// Package site serves the embedded upload page.
package site

import (
	"context"
	"net/http"
)

// Register attaches the embedded upload page to mux at "/".
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", http.FileServer(FS()))
}
