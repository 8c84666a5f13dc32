package models

// Preview sources.
const (
	SourcePreview = "preview"
	SourceView    = "view"
)

// Preview is the text retrieved for one record and the endpoint that served it.
type Preview struct {
	Content string
	Source  string
}
