package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// MountSwagger serves doc at /docs/doc.json and the UI under /docs/
func MountSwagger(r Router, doc func() (string, error)) {
	r.Get("/docs/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		s, err := doc()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(s))
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))
}
