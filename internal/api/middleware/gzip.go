package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"
)

// GzipMinSize is the smallest response body worth compressing
const GzipMinSize = 512

// Gzip wraps a handler so responses are gzip-encoded for clients that
// accept it
func Gzip(h http.Handler) (http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(GzipMinSize),
		gzhttp.CompressionLevel(gzip.BestSpeed),
	)
	if err != nil {
		return nil, err
	}
	return wrap(h), nil
}
