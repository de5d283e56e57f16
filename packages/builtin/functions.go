package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func is one registered builtin. Arguments arrive already split and
// unquoted; the return value keeps its Go type so numeric results stay
// numeric when a template is a single whole reference.
type Func func(args []string) any

// Registry maps function names to implementations. Lookup is
// case-sensitive; names are snake_case.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestamp_ms"] = funcTimestampMs
	r.funcs["uuid"] = funcUUID
	r.funcs["uuid4"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["random_str"] = funcRandomStr
	r.funcs["choice"] = funcChoice
	r.funcs["date"] = funcDate
	r.funcs["base64"] = funcBase64
	r.funcs["base64_decode"] = funcBase64Decode
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["url_encode"] = funcURLEncode
	r.funcs["url_decode"] = funcURLDecode
	r.funcs["env"] = funcEnv
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates expr if it is a registered function call. The second
// return is false when expr is not a call or names an unknown function,
// so the caller can fall back to variable lookup.
func (r *Registry) Call(expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return nil, false
	}

	name := matches[1]
	argsStr := matches[2]

	fn, ok := r.funcs[name]
	if !ok {
		return nil, false
	}

	var args []string
	if argsStr != "" {
		args = parseArgs(argsStr)
	}

	return fn(args), true
}

// parseArgs splits a comma-separated argument list, honoring single and
// double quotes so commas inside quoted strings survive.
func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func funcNow(_ []string) any {
	return time.Now().UTC().Format(time.RFC3339)
}

func funcTimestamp(_ []string) any {
	return time.Now().Unix()
}

func funcTimestampMs(_ []string) any {
	return time.Now().UnixMilli()
}

func funcUUID(_ []string) any {
	return uuid.New().String()
}

func funcRandom(args []string) any {
	min, max := 0, 100
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			min = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: random() min argument %q is not a valid integer\n", args[0])
		}
		if v, err := strconv.Atoi(args[1]); err == nil {
			max = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: random() max argument %q is not a valid integer\n", args[1])
		}
	}
	if max < min {
		min, max = max, min
	}
	return rand.Intn(max-min+1) + min
}

func funcRandomStr(args []string) any {
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v > 0 {
			length = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: random_str() length argument %q is not a valid positive integer\n", args[0])
		}
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
}

func funcChoice(args []string) any {
	if len(args) == 0 {
		return ""
	}
	return args[rand.Intn(len(args))]
}

func funcDate(args []string) any {
	format := "2006-01-02"
	if len(args) >= 1 && args[0] != "" {
		format = args[0]
	}
	return time.Now().UTC().Format(format)
}

func funcBase64(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func funcBase64Decode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		return ""
	}
	return string(decoded)
}

func funcMD5(args []string) any {
	if len(args) < 1 {
		return ""
	}
	hash := md5.Sum([]byte(args[0]))
	return hex.EncodeToString(hash[:])
}

func funcSHA256(args []string) any {
	if len(args) < 1 {
		return ""
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:])
}

func funcURLEncode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return url.QueryEscape(args[0])
}

func funcURLDecode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	decoded, err := url.QueryUnescape(args[0])
	if err != nil {
		return args[0]
	}
	return decoded
}

func funcEnv(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return os.Getenv(args[0])
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
