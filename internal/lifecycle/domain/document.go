package domain

import (
	"mime"
	"path"
	"strings"

	"github.com/smallbiznis/vindesk/internal/config"
)

const (
	ViolationMissing  = "missing_document"
	ViolationType     = "unsupported_type"
	ViolationTooLarge = "too_large"
	ViolationEmpty    = "empty_document"
)

// CheckDocument applies the document policy and returns the violated rule,
// or "" when the document is acceptable. The same check runs for every
// transport.
func CheckDocument(doc Document, policy config.DocumentConfig) string {
	if strings.TrimSpace(doc.Handle) == "" {
		return ViolationMissing
	}
	if doc.SizeBytes <= 0 {
		return ViolationEmpty
	}
	if policy.MaxSizeBytes > 0 && doc.SizeBytes > policy.MaxSizeBytes {
		return ViolationTooLarge
	}
	if !acceptedType(doc, policy) {
		return ViolationType
	}
	return ""
}

func acceptedType(doc Document, policy config.DocumentConfig) bool {
	mediaType := ""
	if raw := strings.TrimSpace(doc.MIMEType); raw != "" {
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			return false
		}
		mediaType = strings.ToLower(parsed)
	}
	for _, accepted := range policy.AcceptedTypes {
		if mediaType != "" && strings.EqualFold(mediaType, strings.TrimSpace(accepted)) {
			return true
		}
	}

	// Some clients send files as octet-stream or with no type at all; fall
	// back to the extension only in that case.
	if mediaType != "" && mediaType != "application/octet-stream" {
		return false
	}
	ext := strings.ToLower(path.Ext(strings.TrimSpace(doc.FileName)))
	if ext == "" {
		return false
	}
	for _, accepted := range policy.AcceptedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(accepted)) {
			return true
		}
	}
	return false
}
