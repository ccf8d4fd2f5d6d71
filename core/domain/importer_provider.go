package domain

import "strings"

// Provider identifies the social network an account belongs to.
type Provider string

const (
	ProviderTwitter Provider = "twitter"
	ProviderGoogle  Provider = "google"
)

// ParseProvider normalizes a provider name from a URL or message.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderTwitter, ProviderGoogle:
		return p, true
	default:
		return "", false
	}
}

func (p Provider) String() string {
	return string(p)
}
