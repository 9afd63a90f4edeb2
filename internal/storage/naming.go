package storage

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
)

// MaxBaseRunes bounds the stored name before the extension is appended.
const MaxBaseRunes = 180

// MaxNameBytes is NAME_MAX on the filesystems the store runs on.
const MaxNameBytes = 255

// maxSuffixBytes is the room kept for the longest collision suffix Write tries.
var maxSuffixBytes = len("_" + strconv.Itoa(maxNameAttempts))

const unsafeChars = `\/:*?"<>|`

// Sanitize strips path-unsafe characters and replaces spaces with underscores.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeChars, r) {
			return -1
		}
		return r
	}, s)
	return strings.ReplaceAll(s, " ", "_")
}

// BaseName returns the last element of a client-supplied path, accepting
// both slash styles since browsers on Windows send full paths.
func BaseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// SplitExt splits a base name into stem and lower-cased extension (with dot).
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], strings.ToLower(name[i:])
}

// StoredName is a generated on-disk name, kept split so that collision
// suffixes land before the extension.
type StoredName struct {
	Base string
	Ext  string
}

func (n StoredName) String() string { return n.Base + n.Ext }

// WithSuffix returns the i-th candidate name. The first candidate is the
// plain name; later ones carry _2, _3, ... within the same rune and byte
// bounds.
func (n StoredName) WithSuffix(i int) string {
	if i <= 1 {
		return n.String()
	}
	suffix := "_" + strconv.Itoa(i)
	base := truncateName(n.Base, MaxBaseRunes-len(suffix), MaxNameBytes-len(n.Ext)-len(suffix))
	return base + suffix + n.Ext
}

func orDefault(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

// truncateName cuts s on a rune boundary so that it holds at most maxRunes
// runes and maxBytes bytes.
func truncateName(s string, maxRunes, maxBytes int) string {
	runes := 0
	for i := 0; i < len(s); {
		_, size := utf8.DecodeRuneInString(s[i:])
		if runes >= maxRunes || i+size > maxBytes {
			return s[:i]
		}
		i += size
		runes++
	}
	return s
}

// BuildStoredName derives the self-describing file name:
// company_project_contractNo_contractName_YYYYMMDD_category_original_version_author.ext
func BuildStoredName(project models.Project, category models.Category, version, author, originalName string, uploadDate time.Time) StoredName {
	stem, ext := SplitExt(BaseName(originalName))

	parts := []string{
		orDefault(Sanitize(project.CompanyName), "NoCompany"),
		orDefault(Sanitize(project.Code), "NoProject"),
		orDefault(Sanitize(project.ContractNumber), "NoContractNo"),
		orDefault(Sanitize(project.ContractName), "NoName"),
		uploadDate.UTC().Format("20060102"),
		Sanitize(category.Label()),
		orDefault(Sanitize(stem), "NoFilename"),
		orDefault(Sanitize(version), "V1"),
		orDefault(Sanitize(author), "unknown"),
	}

	ext = Sanitize(ext)
	return StoredName{
		Base: truncateName(strings.Join(parts, "_"), MaxBaseRunes, MaxNameBytes-len(ext)-maxSuffixBytes),
		Ext:  ext,
	}
}
