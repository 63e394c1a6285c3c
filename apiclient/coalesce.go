package apiclient

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// coalescibleMethod reports whether concurrent identical requests with
// this method may share one in-flight execution. Only side-effect-free
// reads qualify.
func coalescibleMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// coalesceKey builds the deduplication key for one logical request:
// SHA256 over the method, the normalized URL, the sorted query
// parameters and a hash of the body. Query parameter order does not
// affect the key, so "?a=1&b=2" and "?b=2&a=1" coalesce.
func coalesceKey(method, rawURL string, body []byte) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return hashString(method + rawURL + string(body))
	}

	params := parsed.Query()
	sortedParams := make([]string, 0, len(params))
	for key, values := range params {
		sort.Strings(values)
		for _, v := range values {
			sortedParams = append(sortedParams, key+"="+v)
		}
	}
	sort.Strings(sortedParams)

	normalizedURL := fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path)

	keyParts := []string{
		method,
		normalizedURL,
		strings.Join(sortedParams, "&"),
	}
	if len(body) > 0 {
		bodyHash := sha256.Sum256(body)
		keyParts = append(keyParts, hex.EncodeToString(bodyHash[:]))
	}
	return hashString(strings.Join(keyParts, "|"))
}

func hashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
