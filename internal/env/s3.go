package env

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL maps a resource URI to the URL fetched over HTTP. s3:// URIs
// become virtual-hosted (or path-style) HTTPS URLs; http(s) URLs pass
// through unchanged.
func (e Env) ResolveURL(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid resource uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "http", "https":
		return uri, nil
	case "s3":
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, uri)
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" {
		return "", fmt.Errorf("s3 uri %q has no bucket", uri)
	}

	scheme, host := "https", e.AWS.Endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		scheme, host = host[:i], host[i+3:]
	}
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		host = "s3.amazonaws.com"
		if e.AWS.Region != "" && e.AWS.Region != "us-east-1" {
			host = "s3." + e.AWS.Region + ".amazonaws.com"
		}
	}

	out := url.URL{Scheme: scheme}
	// Dotted bucket names break TLS wildcard certificates when virtual-hosted.
	if e.AWS.PathStyle || strings.Contains(bucket, ".") {
		out.Host = host
		out.Path = "/" + bucket + "/" + key
	} else {
		out.Host = bucket + "." + host
		out.Path = "/" + key
	}
	return out.String(), nil
}

// IsS3 reports whether a resource URI is served from S3.
func IsS3(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}
