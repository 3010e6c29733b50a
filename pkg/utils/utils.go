package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions is kept in the order it is reported to clients.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "tif", "tiff", "bmp", "webp", "pdf"}

var (
	filenameStripRe    = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	windowsDeviceFiles = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	AllowedFile(filename string) bool
	SecureFilename(filename string) string
	NewUploadName(filename string) string
	NewOutputID() string
	HashContent(r io.Reader) (string, error)
}

type utils struct {
	allowed map[string]struct{}
}

func New() IUtils {
	allowed := make(map[string]struct{}, len(AllowedExtensions))
	for _, ext := range AllowedExtensions {
		allowed[ext] = struct{}{}
	}

	return &utils{
		allowed: allowed,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// AllowedFile reports whether the text after the last dot is a supported
// extension. Names without a dot are rejected.
func (u *utils) AllowedFile(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	_, ok := u.allowed[strings.ToLower(filename[idx+1:])]
	return ok
}

// SecureFilename reduces a client supplied name to a flat ASCII name that is
// safe to join onto a directory.
func (u *utils) SecureFilename(filename string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(filename) {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	filename = b.String()

	filename = strings.ReplaceAll(filename, "/", " ")
	filename = strings.ReplaceAll(filename, "\\", " ")

	filename = strings.Join(strings.Fields(filename), "_")
	filename = filenameStripRe.ReplaceAllString(filename, "")
	filename = strings.Trim(filename, "._")

	if filename != "" {
		base := strings.ToUpper(strings.SplitN(filename, ".", 2)[0])
		if _, reserved := windowsDeviceFiles[base]; reserved {
			filename = "_" + filename
		}
	}

	return filename
}

func (u *utils) NewUploadName(filename string) string {
	return uuid.NewString() + "_" + u.SecureFilename(filename)
}

func (u *utils) NewOutputID() string {
	return uuid.NewString()
}

func (u *utils) HashContent(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
