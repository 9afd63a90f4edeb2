package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Project carries the contract identity used to name and place files.
// It is owned by the surrounding application; this module only reads it.
type Project struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	CompanyName    string `json:"company_name"`
	ContractNumber string `json:"contract_number"`
	ContractName   string `json:"contract_name"`
}

// StoredFile is one uploaded document version. Rows are never overwritten.
type StoredFile struct {
	ID           string    `json:"id"`
	ProjectID    int64     `json:"project_id"`
	UploaderID   string    `json:"uploader_id"`
	Category     Category  `json:"category"`
	Version      string    `json:"version"`
	Author       string    `json:"author"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	IsPublic     bool      `json:"is_public"`
	OwnerRole    Role      `json:"owner_role,omitempty"`
	IsDeleted    bool      `json:"is_deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ext returns the lower-cased extension of the original name without the dot.
func (f *StoredFile) Ext() string {
	name := f.OriginalName
	if name == "" {
		name = f.StoredName
	}
	return Ext(name)
}

// GroupKey identifies the logical document a version belongs to.
func (f *StoredFile) GroupKey() string {
	name := f.OriginalName
	if name == "" {
		name = f.StoredName
	}
	return string(f.Category) + "\x00" + name
}

// Ext returns the lower-cased extension of name without the leading dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

type Category string

const (
	CategoryContract Category = "contract"
	CategoryTech     Category = "tech"
	CategoryDrawing  Category = "drawing"
	CategoryOther    Category = "other"
)

var categoryLabels = map[Category]string{
	CategoryContract: "Contract",
	CategoryTech:     "TechDoc",
	CategoryDrawing:  "Drawing",
	CategoryOther:    "Other",
}

// ParseCategory maps a raw category string onto the closed set.
// "invoice" is accepted as the legacy spelling of other.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "invoice" {
		return CategoryOther, true
	}
	_, ok := categoryLabels[c]
	return c, ok
}

// Label is the human label embedded in stored file names.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// FileFilter narrows a listing. Nil pointers and empty slices mean "no filter".
type FileFilter struct {
	Category       *Category
	Categories     []Category
	IsPublic       *bool
	IncludeDeleted bool
	LatestOnly     bool
}
