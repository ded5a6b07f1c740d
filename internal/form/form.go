package form

import (
	"context"
	"fmt"
	"html"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gorilla/schema"

	"github.com/PseudoDevs/IamJohnDevORM/internal/validation"
)

// DefaultMaxMemory is the multipart memory limit used by FromHTTP when the
// caller passes zero.
const DefaultMaxMemory = 32 << 20

// Request is the submitted input of one HTTP request: form and query
// values plus uploaded files. It is passed explicitly to whatever needs it.
type Request struct {
	values url.Values
	files  Files
}

// NewRequest builds a Request from already-parsed values and files.
func NewRequest(values url.Values, files Files) *Request {
	if values == nil {
		values = url.Values{}
	}
	if files == nil {
		files = Files{}
	}
	return &Request{values: values, files: files}
}

// FromHTTP parses r's query string, urlencoded body and multipart body.
func FromHTTP(r *http.Request, maxMemory int64) (*Request, error) {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}

	var err error
	if isMultipart(r) {
		err = r.ParseMultipartForm(maxMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("parse request form: %w", err)
	}

	files := Files{}
	if r.MultipartForm != nil {
		files = FilesFromMultipart(r.MultipartForm)
	}
	return NewRequest(r.Form, files), nil
}

// Get returns the first value of field, or "".
func (r *Request) Get(field string) string {
	return r.values.Get(field)
}

// Has reports whether field was submitted.
func (r *Request) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Files returns the uploaded files.
func (r *Request) Files() Files {
	return r.files
}

// Record returns the values as a validation record: a field with one value
// maps to a string and a repeated field to a []string. Uploaded files
// appear under their field name with the client file name as value, so
// rule specs such as "required|image" see them as present.
func (r *Request) Record() map[string]any {
	rec := make(map[string]any, len(r.values)+len(r.files))
	for k, vs := range r.values {
		switch len(vs) {
		case 0:
			rec[k] = ""
		case 1:
			rec[k] = vs[0]
		default:
			rec[k] = append([]string(nil), vs...)
		}
	}
	for k, f := range r.files {
		if _, taken := rec[k]; !taken {
			rec[k] = f.Name
		}
	}
	return rec
}

// Validate validates the request with eng, which gains the request's files
// as its file accessor.
func (r *Request) Validate(ctx context.Context, eng *validation.Engine, rules validation.Rules) (validation.Result, error) {
	return eng.With(validation.WithFiles(r.files)).Validate(ctx, r.Record(), rules)
}

// Decode fills dst, a pointer to a struct, from the values. Fields are
// matched by their `schema` tag; unknown keys are ignored.
func (r *Request) Decode(dst any) error {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	if err := dec.Decode(dst, r.values); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}

// Old is the input of a previous, rejected submission, used to refill a
// form. Values are HTML-escaped on the way out.
type Old struct {
	values map[string]string
}

// NewOld captures the string form of every value of rec.
func NewOld(rec map[string]any) Old {
	values := make(map[string]string, len(rec))
	for k, v := range rec {
		switch val := v.(type) {
		case nil:
		case string:
			values[k] = val
		case []string:
			if len(val) > 0 {
				values[k] = val[0]
			}
		default:
			values[k] = fmt.Sprint(val)
		}
	}
	return Old{values: values}
}

// Get returns the escaped previous value of field and whether there was
// one.
func (o Old) Get(field string) (string, bool) {
	v, ok := o.values[field]
	if !ok {
		return "", false
	}
	return html.EscapeString(v), true
}

// Fields returns the captured field names in sorted order.
func (o Old) Fields() []string {
	out := make([]string, 0, len(o.values))
	for k := range o.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Files is a validation.FileAccessor over uploaded files.
type Files map[string]validation.FileInfo

// FilesFromMultipart collects the first file of every field of form.
func FilesFromMultipart(form *multipart.Form) Files {
	files := Files{}
	for field, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		h := headers[0]
		files[field] = validation.FileInfo{
			Name:        h.Filename,
			Size:        h.Size,
			ContentType: h.Header.Get("Content-Type"),
		}
	}
	return files
}

// File implements validation.FileAccessor.
func (f Files) File(field string) (validation.FileInfo, bool) {
	info, ok := f[field]
	return info, ok
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/")
}
