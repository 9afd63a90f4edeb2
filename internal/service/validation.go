package service

import (
	"mime"
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

var generalExtensions = map[string]bool{
	"pdf": true, "png": true, "jpg": true, "jpeg": true,
	"doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "mrc2": true,
}

// drawings also accept CAD formats
var drawingExtensions = map[string]bool{
	"pdf": true, "png": true, "jpg": true, "jpeg": true,
	"doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "mrc2": true,
	"dwg": true, "dxf": true, "sldprt": true, "sldasm": true,
}

// AllowedExtension reports whether name may be uploaded under category.
// Names without an extension are always rejected.
func AllowedExtension(name string, category models.Category) bool {
	ext := models.Ext(name)
	if ext == "" {
		return false
	}
	if category == models.CategoryDrawing {
		return drawingExtensions[ext]
	}
	return generalExtensions[ext]
}

// office and CAD types are not in every system mime table
var documentTypes = map[string]string{
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"dwg":  "image/vnd.dwg",
	"dxf":  "image/vnd.dxf",
}

// DetectContentType picks the declared type, then the extension mapping,
// then sniffs the leading bytes.
func DetectContentType(declared, name string, head []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ext := models.Ext(name); ext != "" {
		if t, ok := documentTypes[ext]; ok {
			return t
		}
		if byExt := mime.TypeByExtension("." + ext); byExt != "" {
			return byExt
		}
	}
	return http.DetectContentType(head)
}
