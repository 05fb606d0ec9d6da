package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/refundly/webhooks/pkg/apierror"
)

var errDecompressedTooLarge = errors.New("decompressed body exceeds limit")

// DecompressConfig configures the decompression middleware.
type DecompressConfig struct {
	// MaxCompressedSize caps the encoded input. Default: 256KB.
	MaxCompressedSize int64

	// MaxDecompressedSize caps the decoded body. Default: 1MB.
	MaxDecompressedSize int64

	// MaxCompressionRatio rejects bodies that expand more than this. Default: 100.
	MaxCompressionRatio float64
}

// DefaultDecompressConfig returns the default configuration.
func DefaultDecompressConfig() *DecompressConfig {
	return &DecompressConfig{
		MaxCompressedSize:   256 << 10,
		MaxDecompressedSize: 1 << 20,
		MaxCompressionRatio: 100,
	}
}

// Decompress decodes gzip and zstd request bodies based on Content-Encoding.
// It runs before BodyLimit so the limit applies to the decoded body.
func Decompress(cfg *DecompressConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultDecompressConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasNoBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
			if encoding == "" || encoding == "identity" {
				next.ServeHTTP(w, r)
				return
			}
			if encoding != "gzip" && encoding != "zstd" {
				apierror.UnsupportedEncoding(encoding).WriteJSON(w)
				return
			}

			decoded, err := decodeBody(r.Body, encoding, cfg)
			if err != nil {
				if errors.Is(err, errDecompressedTooLarge) {
					WriteBodyTooLarge(w)
					return
				}
				apierror.BadRequest("Invalid compressed request body").WriteJSON(w)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(decoded))
			r.ContentLength = int64(len(decoded))
			r.Header.Del("Content-Encoding")

			next.ServeHTTP(w, r)
		})
	}
}

func decodeBody(body io.ReadCloser, encoding string, cfg *DecompressConfig) ([]byte, error) {
	defer body.Close()

	compressed, err := io.ReadAll(io.LimitReader(body, cfg.MaxCompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read compressed body: %w", err)
	}
	if int64(len(compressed)) > cfg.MaxCompressedSize {
		return nil, errDecompressedTooLarge
	}
	if len(compressed) == 0 {
		return []byte{}, nil
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gr.Close()
		reader = gr
	case "zstd":
		//nolint:gosec // G115: MaxDecompressedSize is a positive byte count
		zr, err := zstd.NewReader(bytes.NewReader(compressed),
			zstd.WithDecoderMaxMemory(uint64(cfg.MaxDecompressedSize)),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encoding)
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, cfg.MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if int64(len(decoded)) > cfg.MaxDecompressedSize {
		return nil, errDecompressedTooLarge
	}
	if ratio := float64(len(decoded)) / float64(len(compressed)); ratio > cfg.MaxCompressionRatio {
		return nil, fmt.Errorf("compression ratio %.1f exceeds %.1f", ratio, cfg.MaxCompressionRatio)
	}
	return decoded, nil
}
