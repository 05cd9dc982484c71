package middleware

import (
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	CompressionLevel int // gzip level 1-9
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{CompressionLevel: gzip.DefaultCompression}
}

// CompressionMiddleware gzips report documents for clients that accept it
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	cm := &CompressionMiddleware{config: config, stats: NewCompressionStats()}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, level)
		return gz
	}
	return cm
}

// Handler wraps the response writer for the rest of the chain. Middleware
// registered after it (such as the report cache) sees the uncompressed body.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		original := c.Writer
		gz := cm.pool.Get().(*gzip.Writer)
		gz.Reset(original)

		writer := &gzipResponseWriter{ResponseWriter: original, gz: gz}
		c.Writer = writer
		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")

		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			cm.pool.Put(gz)
			c.Writer = original
			cm.stats.RecordRequest(writer.plainBytes, int64(original.Size()))
		}()

		c.Next()
	}
}

// gzipResponseWriter sends the body through gzip
type gzipResponseWriter struct {
	gin.ResponseWriter
	gz         *gzip.Writer
	plainBytes int64
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	w.Header().Del("Content-Length")
	n, err := w.gz.Write(data)
	w.plainBytes += int64(n)
	return n, err
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records one compressed response
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64) {
	if originalSize <= 0 || compressedSize <= 0 {
		return
	}
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.CompressedRequests++
	cs.TotalBytes += originalSize
	cs.CompressedBytes += compressedSize
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(0)
	if cs.TotalBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
