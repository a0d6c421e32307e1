package upload

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// unsafeRun matches every run of characters that may not appear in a key segment.
var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// KeyDeriver turns untrusted client filenames into object keys of the form
// <prefix>/YYYY/MM/DD/<id>-<safe-name>.
type KeyDeriver struct {
	Prefix string
	NewID  func() string
	Now    func() time.Time
}

// NewKeyDeriver creates a KeyDeriver backed by random UUIDs and the wall clock.
func NewKeyDeriver(prefix string) *KeyDeriver {
	return &KeyDeriver{
		Prefix: prefix,
		NewID:  uuid.NewString,
		Now:    time.Now,
	}
}

// SanitizeFilename keeps only the last path segment of name and replaces
// disallowed characters. It never returns an empty string.
func (d *KeyDeriver) SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeRun.ReplaceAllString(name, "-")
	if name == "" {
		return "file-" + d.newID()
	}
	return name
}

// Derive builds a fresh object key for the given client filename.
func (d *KeyDeriver) Derive(fileName string) string {
	now := d.now().UTC()
	datePath := fmt.Sprintf("%d/%02d/%02d", now.Year(), now.Month(), now.Day())

	id := d.newID()
	safe := d.SanitizeFilename(fileName)

	prefix := strings.Trim(d.Prefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s-%s", datePath, id, safe)
	}
	return fmt.Sprintf("%s/%s/%s-%s", prefix, datePath, id, safe)
}

func (d *KeyDeriver) newID() string {
	if d.NewID == nil {
		return uuid.NewString()
	}
	return d.NewID()
}

func (d *KeyDeriver) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}
