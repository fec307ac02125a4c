// Package env carries the per-load runtime environment for remote reads:
// credentials, endpoints, headers, and retry policy. An Env is a plain
// value captured once and threaded through every task; nothing here reads
// or writes process state after Capture returns.
package env

import (
	"strconv"
	"strings"
	"time"

	"github.com/vk/stacgridgo/internal/retry"
)

// AWS holds S3 access settings.
type AWS struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	// Endpoint overrides the S3 host, e.g. "s3.af-south-1.amazonaws.com"
	// or "http://localhost:9000".
	Endpoint string
	// PathStyle addresses buckets as endpoint/bucket/key.
	PathStyle     bool
	NoSign        bool
	RequesterPays bool
}

// HasCredentials reports whether requests can be signed.
func (a AWS) HasCredentials() bool {
	return a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// Env is the environment of one load.
type Env struct {
	AWS         AWS
	BearerToken string
	Headers     map[string]string
	Retry       retry.Config
	Timeout     time.Duration
	UserAgent   string
}

// Default returns the environment used when the caller supplies none.
func Default() Env {
	return Env{
		Retry:     retry.DefaultConfig(),
		Timeout:   60 * time.Second,
		UserAgent: "stacgridgo",
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Capture builds an Env from Default overlaid with the variables visible
// through lookup.
func Capture(lookup LookupFunc) Env {
	e := Default()
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	e.AWS.AccessKeyID = get("AWS_ACCESS_KEY_ID")
	e.AWS.SecretAccessKey = get("AWS_SECRET_ACCESS_KEY")
	e.AWS.SessionToken = get("AWS_SESSION_TOKEN")
	e.AWS.Region = get("AWS_REGION")
	if e.AWS.Region == "" {
		e.AWS.Region = get("AWS_DEFAULT_REGION")
	}
	e.AWS.Endpoint = get("AWS_S3_ENDPOINT")
	e.AWS.NoSign = truthy(get("AWS_NO_SIGN_REQUEST"))
	e.AWS.RequesterPays = strings.EqualFold(get("AWS_REQUEST_PAYER"), "requester")
	if v := get("AWS_VIRTUAL_HOSTING"); v != "" {
		e.AWS.PathStyle = !truthy(v)
	}

	e.BearerToken = get("GDAL_HTTP_BEARER")
	if v := get("GDAL_HTTP_USERAGENT"); v != "" {
		e.UserAgent = v
	}
	if n, err := strconv.Atoi(get("GDAL_HTTP_TIMEOUT")); err == nil && n > 0 {
		e.Timeout = time.Duration(n) * time.Second
	}
	if n, err := strconv.Atoi(get("GDAL_HTTP_MAX_RETRY")); err == nil && n >= 0 {
		e.Retry.MaxAttempts = n + 1
	}
	if f, err := strconv.ParseFloat(get("GDAL_HTTP_RETRY_DELAY"), 64); err == nil && f > 0 {
		e.Retry.InitialDelay = time.Duration(f * float64(time.Second))
	}
	if h := get("GDAL_HTTP_HEADERS"); h != "" {
		e.Headers = parseHeaders(h)
	}
	return e
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// parseHeaders reads "Name: value" pairs separated by commas or newlines.
func parseHeaders(s string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == ',' }) {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// Redacted returns a loggable summary with secrets masked.
func (e Env) Redacted() map[string]string {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	return map[string]string{
		"aws_access_key_id":     mask(e.AWS.AccessKeyID),
		"aws_secret_access_key": mask(e.AWS.SecretAccessKey),
		"aws_session_token":     mask(e.AWS.SessionToken),
		"aws_region":            e.AWS.Region,
		"aws_s3_endpoint":       e.AWS.Endpoint,
		"aws_no_sign_request":   strconv.FormatBool(e.AWS.NoSign),
		"bearer_token":          mask(e.BearerToken),
		"timeout":               e.Timeout.String(),
		"retry_max_attempts":    strconv.Itoa(e.Retry.MaxAttempts),
	}
}
