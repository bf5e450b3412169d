package middleware

import (
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// CompressConfig configures response compression.
type CompressConfig struct {
	BrotliQuality int
	GzipLevel     int
	Skipper       func(c *gin.Context) bool
	MinLength     int
}

var DefaultCompressConfig = CompressConfig{
	BrotliQuality: brotli.DefaultCompression,
	GzipLevel:     gzip.DefaultCompression,
	MinLength:     1024,
}

type compressWriter struct {
	gin.ResponseWriter
	encoding   string
	newEncoder func(w io.Writer) io.WriteCloser
	encoder    io.WriteCloser
	buf        []byte
	minLength  int
	once       sync.Once
}

func (cw *compressWriter) Write(data []byte) (int, error) {
	if cw.encoder != nil {
		return cw.encoder.Write(data)
	}

	cw.buf = append(cw.buf, data...)
	if len(cw.buf) < cw.minLength {
		return len(data), nil
	}

	cw.once.Do(func() {
		cw.ResponseWriter.Header().Set("Content-Encoding", cw.encoding)
		cw.ResponseWriter.Header().Del("Content-Length")
		cw.encoder = cw.newEncoder(cw.ResponseWriter)
	})
	if _, err := cw.encoder.Write(cw.buf); err != nil {
		return 0, err
	}
	cw.buf = cw.buf[:0]
	return len(data), nil
}

func (cw *compressWriter) WriteString(s string) (int, error) {
	return cw.Write([]byte(s))
}

// Flush drains a short buffer uncompressed and forwards the flush.
func (cw *compressWriter) Flush() {
	_ = cw.finish()
	cw.ResponseWriter.Flush()
}

func (cw *compressWriter) finish() error {
	if cw.encoder != nil {
		return cw.encoder.Close()
	}
	if len(cw.buf) == 0 {
		return nil
	}
	_, err := cw.ResponseWriter.Write(cw.buf)
	cw.buf = cw.buf[:0]
	return err
}

// Compress returns the default response compression middleware.
func Compress() gin.HandlerFunc {
	return CompressWithConfig(DefaultCompressConfig)
}

// CompressWithConfig compresses responses of at least MinLength bytes with
// brotli, or gzip for clients that do not accept br.
func CompressWithConfig(cfg CompressConfig) gin.HandlerFunc {
	if cfg.BrotliQuality < brotli.BestSpeed || cfg.BrotliQuality > brotli.BestCompression {
		cfg.BrotliQuality = brotli.DefaultCompression
	}
	if cfg.GzipLevel < gzip.HuffmanOnly || cfg.GzipLevel > gzip.BestCompression {
		cfg.GzipLevel = gzip.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultCompressConfig.MinLength
	}

	return func(c *gin.Context) {
		if shouldSkip(c) || (cfg.Skipper != nil && cfg.Skipper(c)) {
			c.Next()
			return
		}

		cw := &compressWriter{
			ResponseWriter: c.Writer,
			minLength:      cfg.MinLength,
		}
		switch {
		case accepts(c.Request, "br"):
			cw.encoding = "br"
			cw.newEncoder = func(w io.Writer) io.WriteCloser {
				return brotli.NewWriterLevel(w, cfg.BrotliQuality)
			}
		case accepts(c.Request, "gzip"):
			cw.encoding = "gzip"
			cw.newEncoder = func(w io.Writer) io.WriteCloser {
				gw, err := gzip.NewWriterLevel(w, cfg.GzipLevel)
				if err != nil {
					gw = gzip.NewWriter(w)
				}
				return gw
			}
		default:
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		c.Writer = cw
		defer func() {
			if err := cw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

// shouldSkip returns true for protocols that are incompatible with
// buffered compression and must be passed through untouched.
func shouldSkip(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		return true
	}
	// The Upgrade handshake fails if the response is wrapped.
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}
	return false
}

func accepts(r *http.Request, encoding string) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name := strings.TrimSpace(strings.SplitN(enc, ";", 2)[0])
		if strings.EqualFold(name, encoding) {
			return true
		}
	}
	return false
}
