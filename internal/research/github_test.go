package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepositoryName(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{name: "repository root", url: "https://github.com/tokio-rs/axum", want: "tokio-rs/axum", wantOK: true},
		{name: "deep path", url: "https://github.com/tokio-rs/axum/tree/main/examples", want: "tokio-rs/axum", wantOK: true},
		{name: "http and www", url: "http://www.github.com/expressjs/express", want: "expressjs/express", wantOK: true},
		{name: "git suffix", url: "https://github.com/serde-rs/serde.git", want: "serde-rs/serde", wantOK: true},
		{name: "query string", url: "https://github.com/clap-rs/clap?tab=readme", want: "clap-rs/clap", wantOK: true},
		{name: "explicit port", url: "https://github.com:443/tokio-rs/axum", want: "tokio-rs/axum", wantOK: true},
		{name: "git suffix before query", url: "https://github.com/serde-rs/serde.git?ref=main#readme", want: "serde-rs/serde", wantOK: true},
		{name: "without scheme", url: "github.com/tokio-rs/axum", want: "tokio-rs/axum", wantOK: true},
		{name: "owner only", url: "https://github.com/tokio-rs", wantOK: false},
		{name: "other host", url: "https://gitlab.com/a/b", wantOK: false},
		{name: "garbage", url: "not a url", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RepositoryName(tt.url, "github.com")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalRepository(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "forces https", url: "http://github.com/tokio-rs/axum", want: "https://github.com/tokio-rs/axum"},
		{name: "drops deep path", url: "https://github.com/tokio-rs/axum/blob/main/README.md", want: "https://github.com/tokio-rs/axum"},
		{name: "normalises host", url: "https://WWW.GitHub.com/a/b", want: "https://github.com/a/b"},
		{name: "drops query", url: "https://github.com/a/b?tab=readme#top", want: "https://github.com/a/b"},
		{name: "explicit port", url: "https://github.com:443/a/b", want: "https://github.com/a/b"},
		{name: "git suffix before query", url: "https://github.com/a/b.git?x=1", want: "https://github.com/a/b"},
		{name: "owner only", url: "https://github.com/a", want: ""},
		{name: "other host", url: "https://example.com/a/b", want: ""},
		{name: "unparseable", url: "://bad", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalRepository(tt.url, "github.com"))
		})
	}
}

func TestRepositoryName_AgreesWithCanonicalRepository(t *testing.T) {
	urls := []string{
		"https://github.com:443/tokio-rs/axum",
		"http://www.github.com/a/b.git?x=1",
		"https://github.com/a/b/issues#top",
		"https://github.com/a",
		"https://gitlab.com/a/b",
	}
	for _, u := range urls {
		name, ok := RepositoryName(u, "github.com")
		canonical := CanonicalRepository(u, "github.com")
		if !ok {
			assert.Empty(t, canonical, u)
			continue
		}
		assert.Equal(t, "https://github.com/"+name, canonical, u)
	}
}
