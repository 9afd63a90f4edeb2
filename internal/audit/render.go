package audit

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

var objectTypeLabels = map[models.ObjectType]string{
	models.ObjectTask:        "Task",
	models.ObjectProcurement: "Procurement",
	models.ObjectAcceptance:  "Acceptance",
	models.ObjectFeedback:    "Customer feedback",
	models.ObjectContract:    "Contract",
	models.ObjectFile:        "File",
}

var actionLabels = map[models.Action]string{
	models.ActionCreate:       "Create",
	models.ActionUpdate:       "Update",
	models.ActionDelete:       "Delete",
	models.ActionStatusChange: "Status change",
	models.ActionUpload:       "Upload",
	models.ActionResolve:      "Mark resolved",
	models.ActionDownload:     "Download",
	models.ActionRestore:      "Restore",
	models.ActionNotify:       "Send notification",
}

var fieldLabels = map[string]string{
	"status":                "Status",
	"item_name":             "Item name",
	"quantity":              "Quantity",
	"unit":                  "Unit",
	"expected_date":         "Expected date",
	"planned_delivery_date": "Planned delivery date (project)",
	"content":               "Content",
	"handler_id":            "Handler ID",
	"result":                "Result",
	"completion_time":       "Completion time",
	"is_resolved":           "Resolved",
	"file_type":             "File type",
	"version":               "Version",
	"original_filename":     "Original file name",
	"stored_filename":       "Stored file name",
	"is_public":             "Visible to customer",
	"is_deleted":            "Deleted",
	"stage_name":            "Acceptance stage",
	"person_id":             "Inspector ID",
	"date":                  "Date",
	"remarks":               "Remarks",
	"size_bytes":            "Size (bytes)",
}

func ObjectTypeLabel(t models.ObjectType) string {
	if l, ok := objectTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

func ActionLabel(a models.Action) string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

// FieldLabel falls back to the raw field name.
func FieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// RenderDiff turns an entry's detail into human-readable lines. With both
// sides present only changed fields are listed as "label: old → new".
func RenderDiff(e *models.AuditLogEntry) string {
	if e == nil || e.Detail == nil {
		return ""
	}
	oldSide, newSide := e.Detail.Old, e.Detail.New

	var lines []string
	switch {
	case oldSide != nil && newSide != nil:
		for _, k := range unionKeys(oldSide, newSide) {
			ov, nv := oldSide[k], newSide[k]
			if reflect.DeepEqual(ov, nv) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s → %s", FieldLabel(k), formatValue(ov), formatValue(nv)))
		}
	case newSide != nil:
		lines = renderSide(newSide)
	case oldSide != nil:
		lines = renderSide(oldSide)
	}
	return strings.Join(lines, "\n")
}

func renderSide(side map[string]any) []string {
	lines := make([]string, 0, len(side))
	for _, k := range unionKeys(side, nil) {
		lines = append(lines, fmt.Sprintf("%s: %s", FieldLabel(k), formatValue(side[k])))
	}
	return lines
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}
