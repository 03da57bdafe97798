package httpapi

// defaultMaxBodyBytes leaves room for a base64 encoded high resolution image.
const defaultMaxBodyBytes = 32 << 20

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = defaultMaxBodyBytes

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// maxImageSide bounds the longest side of decoded images (0 keeps the original size).
var maxImageSide int

// SetMaxImageSide sets the downscale bound applied before inference.
func SetMaxImageSide(n int) {
	if n < 0 {
		n = 0
	}
	maxImageSide = n
}

// CORS configuration. If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty lists
// fall back to permissive defaults (any origin, GET/POST/OPTIONS, common headers).
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
