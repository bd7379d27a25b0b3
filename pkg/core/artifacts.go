// Package core provides the error taxonomy and execution model types.
package core

// Attachment represents a debug artifact captured for a failed scenario
type Attachment struct {
	Name        string `json:"name"`        // screenshot, hierarchy
	ContentType string `json:"contentType"` // image/png, application/xml
	Path        string `json:"path"`        // relative to output directory
	Body        []byte `json:"-"`
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewHierarchyAttachment creates a page-source attachment
func NewHierarchyAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeXML,
		Path:        path,
		Body:        data,
	}
}
