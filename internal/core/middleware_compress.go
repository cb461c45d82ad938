package core

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// compressMinSize leaves small envelopes (errors, job receipts) uncompressed.
const compressMinSize = 1024

// NewCompressionMiddleware gzips responses for clients that accept it.
// Pareto samples and plans repeat the same keys for every hour and compress
// well.
func NewCompressionMiddleware() (func(http.Handler) http.Handler, error) {
	wrap, err := gzhttp.NewWrapper(
		gzhttp.MinSize(compressMinSize),
		gzhttp.ContentTypes([]string{"application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("configuring gzip: %w", err)
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}
