package domain

// ResourceCategory selects the sandbox root a path is resolved against
type ResourceCategory int

const (
	// CategoryPage covers bundled pages and shared theme resources
	CategoryPage ResourceCategory = iota
	// CategoryAsset covers everything under the assets/ prefix
	CategoryAsset
)

// String returns the category name
func (c ResourceCategory) String() string {
	switch c {
	case CategoryPage:
		return "page"
	case CategoryAsset:
		return "asset"
	default:
		return "unknown"
	}
}

// Resource is a fully loaded bundled resource ready to be served
type Resource struct {
	Bytes        []byte
	MediaType    string
	ResolvedPath string
}

// Size returns the payload length in bytes
func (r *Resource) Size() int {
	return len(r.Bytes)
}
