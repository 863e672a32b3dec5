package research

import (
	"net/url"
	"strings"
)

// RepositoryName returns "owner/repo" for a hit on the hosting domain, for example
// "https://github.com/tokio-rs/axum/tree/main" gives "tokio-rs/axum".
func RepositoryName(rawURL, host string) (string, bool) {
	owner, repo, ok := parseRepository(rawURL, host)
	if !ok {
		return "", false
	}
	return owner + "/" + repo, true
}

// CanonicalRepository rebuilds a hit URL as https://<host>/<owner>/<repo>. It returns ""
// when the URL cannot be parsed or does not point into a repository on host.
func CanonicalRepository(rawURL, host string) string {
	owner, repo, ok := parseRepository(rawURL, host)
	if !ok {
		return ""
	}
	canonical := url.URL{Scheme: "https", Host: host, Path: "/" + owner + "/" + repo}
	return canonical.String()
}

// parseRepository extracts owner and repository from a URL on host. The port, a leading
// "www." and the case of the host are ignored; query and fragment never reach the path.
func parseRepository(rawURL, host string) (owner, repo string, ok bool) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	if !strings.EqualFold(strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), host) {
		return "", "", false
	}

	segments := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 3)
	if len(segments) < 2 {
		return "", "", false
	}
	owner = segments[0]
	repo = strings.TrimSuffix(segments[1], ".git")
	if owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
