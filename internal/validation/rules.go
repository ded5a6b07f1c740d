package validation

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"net/netip"
	"net/url"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nbutton23/zxcvbn-go"
	"golang.org/x/crypto/bcrypt"
)

// Rule names of the built-in rules.
const (
	RuleRequired       = "required"
	RuleMin            = "min"
	RuleMax            = "max"
	RuleEmail          = "email"
	RuleNumeric        = "numeric"
	RuleAlpha          = "alpha"
	RuleAlphaNumeric   = "alphaNumeric"
	RuleInteger        = "integer"
	RuleBoolean        = "boolean"
	RuleURL            = "url"
	RuleIP             = "ip"
	RuleMatch          = "match"
	RulePassword       = "password"
	RuleStrongPassword = "strongPassword"
	RuleUnique         = "unique"
	RuleExists         = "exists"
	RuleFile           = "file"
	RuleImage          = "image"
	RuleFilesize       = "filesize"
	RuleFiletype       = "filetype"
	RuleUUID           = "uuid"
	RulePasswordScore  = "passwordScore"
)

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

func builtinRules() []Rule {
	return []Rule{
		{Name: RuleRequired, Evaluate: pure(isPresent), Message: "The :field field is required"},
		{Name: RuleMin, Evaluate: minLength, Message: "The :field field must be at least :param characters long", MinParams: 1, CheckParams: checkLength},
		{Name: RuleMax, Evaluate: maxLength, Message: "The :field field must not exceed :param characters", MinParams: 1, CheckParams: checkLength},
		{Name: RuleEmail, Evaluate: pure(isEmail), Message: "The :field field must be a valid email address"},
		{Name: RuleNumeric, Evaluate: pure(isNumeric), Message: "The :field field must be a number"},
		{Name: RuleAlpha, Evaluate: pure(isAlpha), Message: "The :field field must contain only letters"},
		{Name: RuleAlphaNumeric, Evaluate: pure(isAlphaNumeric), Message: "The :field field must contain only letters and numbers"},
		{Name: RuleInteger, Evaluate: pure(isInteger), Message: "The :field field must be an integer"},
		{Name: RuleBoolean, Evaluate: pure(isBoolean), Message: "The :field field must be a boolean"},
		{Name: RuleURL, Evaluate: pure(isURL), Message: "The :field field must be a URL"},
		{Name: RuleIP, Evaluate: pure(isIP), Message: "The :field field must be an IP address"},
		{Name: RuleMatch, Evaluate: matchesField, Message: "The :field field must match the :param field", MinParams: 1},
		{Name: RulePassword, Evaluate: matchesHash, Message: "The :field field must match the password", MinParams: 1},
		{Name: RuleStrongPassword, Evaluate: pure(isStrongPassword), Message: "The :field field must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, and one number"},
		{Name: RuleUnique, Evaluate: isUnique, Message: "The :field field must be unique"},
		{Name: RuleExists, Evaluate: exists, Message: "The :field field must exist in the database"},
		{Name: RuleFile, Evaluate: isFile, Message: "The :field field must be a file"},
		{Name: RuleImage, Evaluate: isImage, Message: "The :field field must be an image"},
		{Name: RuleFilesize, Evaluate: fileWithinSize, Message: "The :field field must not exceed :param bytes", MinParams: 1, CheckParams: checkSize},
		{Name: RuleFiletype, Evaluate: fileHasExtension, Message: "The :field field must be one of the following types: :param", MinParams: 1},
		{Name: RuleUUID, Evaluate: pure(isUUID), Message: "The :field field must be a valid UUID"},
		{Name: RulePasswordScore, Evaluate: passwordScore, Message: "The :field field is too easy to guess", MinParams: 1, CheckParams: checkScore},
	}
}

// pure adapts a value predicate to a RuleFunc.
func pure(pred func(v any) bool) RuleFunc {
	return func(_ context.Context, in Input) (bool, error) {
		return pred(in.Value), nil
	}
}

// isPresent reports whether v is non-empty: not nil, not "", and not an
// empty slice or map. Zero numbers and false are values.
func isPresent(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case string:
		return val != ""
	case []byte:
		return len(val) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func minLength(_ context.Context, in Input) (bool, error) {
	n, err := intParam(in, RuleMin)
	if err != nil {
		return false, err
	}
	return utf8.RuneCountInString(toString(in.Value)) >= n, nil
}

func maxLength(_ context.Context, in Input) (bool, error) {
	n, err := intParam(in, RuleMax)
	if err != nil {
		return false, err
	}
	return utf8.RuneCountInString(toString(in.Value)) <= n, nil
}

// isEmail accepts a bare address with a dotted domain ("a@b.co"), not a
// display-name form.
func isEmail(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	_, domain, _ := strings.Cut(s, "@")
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

func isNumeric(v any) bool {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(val)) && !math.IsInf(float64(val), 0)
	case float64:
		return !math.IsNaN(val) && !math.IsInf(val, 0)
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return false
}

func isAlpha(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isASCIILetter(s[i]) {
			return false
		}
	}
	return true
}

func isAlphaNumeric(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isASCIILetter(s[i]) && !isASCIIDigit(s[i]) {
			return false
		}
	}
	return true
}

// isInteger accepts integer kinds, whole-number floats as decoded from JSON,
// and base-10 integer strings.
func isInteger(v any) bool {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return isWhole(val)
	case float32:
		return isWhole(float64(val))
	case string:
		_, err := strconv.ParseInt(val, 10, 64)
		return err == nil
	}
	return false
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && f == math.Trunc(f)
}

// isBoolean accepts bools, numeric 0 and 1, and the strings true/false, 1/0,
// yes/no and on/off in any case.
func isBoolean(v any) bool {
	switch val := v.(type) {
	case bool:
		return true
	case int:
		return val == 0 || val == 1
	case int64:
		return val == 0 || val == 1
	case float64:
		return val == 0 || val == 1
	case string:
		switch strings.ToLower(val) {
		case "true", "false", "1", "0", "yes", "no", "on", "off":
			return true
		}
	}
	return false
}

func isURL(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isIP(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// matchesField compares the value with another field of the same record.
// A missing other field never matches.
func matchesField(_ context.Context, in Input) (bool, error) {
	other, ok := in.Record[in.Params[0]]
	if !ok {
		return false, nil
	}
	return reflect.DeepEqual(in.Value, other), nil
}

// matchesHash compares the value with a bcrypt hash given as the parameter.
func matchesHash(_ context.Context, in Input) (bool, error) {
	s, ok := in.Value.(string)
	if !ok {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(in.Params[0]), []byte(s)) == nil, nil
}

func isStrongPassword(v any) bool {
	s, ok := v.(string)
	if !ok || utf8.RuneCountInString(s) < 8 {
		return false
	}
	var upper, lower, digit bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case isASCIIDigit(c):
			digit = true
		}
	}
	return upper && lower && digit
}

// isUnique passes when no row has the value. Params: [table[, column]].
func isUnique(ctx context.Context, in Input) (bool, error) {
	found, err := lookup(ctx, in, RuleUnique)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// exists passes when some row has the value. Params: [table[, column]].
func exists(ctx context.Context, in Input) (bool, error) {
	return lookup(ctx, in, RuleExists)
}

func lookup(ctx context.Context, in Input, rule string) (bool, error) {
	if in.Lookup == nil {
		return false, fmt.Errorf("%s rule on field %q: %w", rule, in.Field, ErrNoLookup)
	}

	var table string
	column := in.Field
	if len(in.Params) > 0 {
		table = in.Params[0]
	}
	if len(in.Params) > 1 && in.Params[1] != "" {
		column = in.Params[1]
	}

	found, err := in.Lookup(ctx, table, column, in.Value)
	if err != nil {
		return false, fmt.Errorf("%s rule on field %q: %w", rule, in.Field, err)
	}
	return found, nil
}

func uploaded(in Input) (FileInfo, bool) {
	if in.Files == nil {
		return FileInfo{}, false
	}
	return in.Files.File(in.Field)
}

func isFile(_ context.Context, in Input) (bool, error) {
	_, ok := uploaded(in)
	return ok, nil
}

func isImage(_ context.Context, in Input) (bool, error) {
	f, ok := uploaded(in)
	if !ok {
		return false, nil
	}
	return imageContentTypes[strings.ToLower(f.ContentType)], nil
}

func fileWithinSize(_ context.Context, in Input) (bool, error) {
	max, err := sizeParam(in.Params)
	if err != nil {
		return false, invalidParam(in, RuleFilesize, "%v", err)
	}
	f, ok := uploaded(in)
	if !ok {
		return false, nil
	}
	return f.Size <= max, nil
}

func fileHasExtension(_ context.Context, in Input) (bool, error) {
	f, ok := uploaded(in)
	if !ok {
		return false, nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
	for _, allowed := range in.Params {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true, nil
		}
	}
	return false, nil
}

func isUUID(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// passwordScore passes when the zxcvbn score (0-4) reaches the parameter.
// Other string fields of the record count as user inputs, so a password
// built from the user's name or email scores lower.
func passwordScore(_ context.Context, in Input) (bool, error) {
	min, err := scoreParam(in.Params)
	if err != nil {
		return false, invalidParam(in, RulePasswordScore, "%v", err)
	}
	s, ok := in.Value.(string)
	if !ok {
		return false, nil
	}

	var userInputs []string
	for field, v := range in.Record {
		if other, ok := v.(string); ok && field != in.Field && other != "" {
			userInputs = append(userInputs, other)
		}
	}
	return zxcvbn.PasswordStrength(s, userInputs).Score >= min, nil
}

func intParam(in Input, rule string) (int, error) {
	n, err := lengthParam(in.Params)
	if err != nil {
		return 0, invalidParam(in, rule, "%v", err)
	}
	return n, nil
}

func lengthParam(params []string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(params[0]))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("length must be a non-negative integer, got %q", params[0])
	}
	return n, nil
}

func sizeParam(params []string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(params[0]), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("size must be a non-negative integer, got %q", params[0])
	}
	return n, nil
}

func scoreParam(params []string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(params[0]))
	if err != nil || n < 0 || n > 4 {
		return 0, fmt.Errorf("score must be an integer between 0 and 4, got %q", params[0])
	}
	return n, nil
}

func checkLength(params []string) error {
	_, err := lengthParam(params)
	return err
}

func checkSize(params []string) error {
	_, err := sizeParam(params)
	return err
}

func checkScore(params []string) error {
	_, err := scoreParam(params)
	return err
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isASCIIDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
