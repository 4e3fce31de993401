package vo

import "strings"

// Media types served by the resource resolver
const (
	MediaTypeHTML       = "text/html"
	MediaTypeCSS        = "text/css"
	MediaTypeJavaScript = "application/javascript"
	MediaTypeText       = "text/plain"
	MediaTypePNG        = "image/png"
	MediaTypeJPEG       = "image/jpeg"
	MediaTypeGIF        = "image/gif"
	MediaTypeSVG        = "image/svg+xml"
	MediaTypeIcon       = "image/x-icon"
	MediaTypeWebP       = "image/webp"
	MediaTypeBinary     = "application/octet-stream"
)

// mediaTypes is the fixed extension table. Nothing outside it is inferred.
var mediaTypes = map[string]string{
	".html": MediaTypeHTML,
	".htm":  MediaTypeHTML,
	".css":  MediaTypeCSS,
	".js":   MediaTypeJavaScript,
	".txt":  MediaTypeText,
	".png":  MediaTypePNG,
	".jpg":  MediaTypeJPEG,
	".jpeg": MediaTypeJPEG,
	".gif":  MediaTypeGIF,
	".svg":  MediaTypeSVG,
	".ico":  MediaTypeIcon,
	".webp": MediaTypeWebP,
}

// MediaTypeForExtension maps an extension (with dot, any case) to a media type.
// Unknown extensions map to application/octet-stream.
func MediaTypeForExtension(ext string) string {
	if mt, ok := mediaTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	return MediaTypeBinary
}

// MediaTypeFor returns the media type for a file name or path
func MediaTypeFor(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return MediaTypeForExtension(name[i:])
	}
	return MediaTypeBinary
}

// IsMarkup returns true for media types that get template substitution
func IsMarkup(mediaType string) bool {
	return mediaType == MediaTypeHTML
}

// IsRasterImage returns true for binary image formats whose content can be sniffed
func IsRasterImage(mediaType string) bool {
	switch mediaType {
	case MediaTypePNG, MediaTypeJPEG, MediaTypeGIF, MediaTypeIcon, MediaTypeWebP:
		return true
	}
	return false
}

// ContentTypeHeader returns the header value for a media type, adding a
// charset to textual types.
func ContentTypeHeader(mediaType string) string {
	if strings.HasPrefix(mediaType, "text/") || mediaType == MediaTypeJavaScript || mediaType == MediaTypeSVG {
		return mediaType + "; charset=utf-8"
	}
	return mediaType
}
