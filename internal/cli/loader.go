package cli

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/PseudoDevs/IamJohnDevORM/internal/form"
	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

// LoadError reports an input file that could not be read or decoded.
type LoadError struct {
	Code    string
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

// LoadRecord reads a record (one object of field values) from a .json,
// .yaml, .yml or .cue file.
//
// JSON is decoded with the YAML decoder, which JSON is a subset of, so
// that whole numbers arrive as int and satisfy the integer rule.
func LoadRecord(path string) (map[string]any, error) {
	var rec map[string]any
	if err := decodeFile(path, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		rec = map[string]any{}
	}
	return rec, nil
}

// LoadRules reads a rule set, an object mapping field names to rule specs,
// from a .json, .yaml, .yml or .cue file.
func LoadRules(path string) (validation.Rules, error) {
	var rules map[string]string
	if err := decodeFile(path, &rules); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "rule set is empty"}
	}
	return validation.Rules(rules), nil
}

// LoadForm reads a URL-encoded request body such as "name=Ada&tag=a&tag=b"
// and attaches the uploads in files, which maps field names to local paths.
func LoadForm(path string, files map[string]string) (*form.Request, error) {
	body, err := readInput(path)
	if err != nil {
		return nil, err
	}
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}
	uploads, err := LoadUploads(files)
	if err != nil {
		return nil, err
	}
	return form.NewRequest(values, uploads), nil
}

// LoadUploads describes local files the way a multipart form would carry
// them: one file per field, content type taken from the file extension.
func LoadUploads(files map[string]string) (form.Files, error) {
	mf := &multipart.Form{File: make(map[string][]*multipart.FileHeader, len(files))}
	for field, path := range files {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found"}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
		}
		if info.IsDir() {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "upload is a directory"}
		}

		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		mf.File[field] = []*multipart.FileHeader{{
			Filename: filepath.Base(path),
			Header:   textproto.MIMEHeader{"Content-Type": {contentType}},
			Size:     info.Size(),
		}}
	}
	return form.FilesFromMultipart(mf), nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found"}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}
	return data, nil
}

func decodeFile(path string, dst any) error {
	data, err := readInput(path)
	if err != nil {
		return err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
		err = yaml.Unmarshal(data, dst)
	case ".cue":
		err = decodeCUE(data, path, dst)
	default:
		return &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: fmt.Sprintf("unsupported file type %q", ext)}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}
	return nil
}

func decodeCUE(data []byte, path string, dst any) error {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fmt.Errorf("building CUE value: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("CUE value is not concrete: %w", err)
	}
	return value.Decode(dst)
}
