package urlopts

import (
	"strconv"
	"strings"

	"github.com/nlnwa/whatwg-url/url"
)

// ToURL resolves opts into a single URL.
//
// The base comes from Href, then Origin, then Protocol plus Hostname (or
// Host). Every other set field is then applied on top of the base in a fixed
// order. Any failure is a *ValidationError and no URL is returned.
func ToURL(opts Options) (*url.Url, error) {
	if verr := opts.validate(); verr != nil {
		return nil, verr
	}

	u, verr := baseURL(opts)
	if verr != nil {
		return nil, verr
	}

	if opts.Protocol != "" {
		u.SetProtocol(opts.Protocol)
	}
	if opts.Host != "" {
		u.SetHost(opts.Host)
	}
	if opts.Hostname != "" {
		u.SetHostname(opts.Hostname)
	}
	if opts.Port != 0 {
		u.SetPort(strconv.Itoa(opts.Port))
	}

	pathname, search := opts.Pathname, opts.Search
	if opts.Path != "" {
		pathname, search = splitPath(opts.Path)
	}
	if pathname != "" {
		u.SetPathname(pathname)
	}
	if search != "" {
		u.SetSearch(search)
	}

	if len(opts.SearchParams) > 0 {
		appendParams(u, opts.SearchParams)
	}

	if opts.Hash != "" {
		u.SetHash(opts.Hash)
	}
	if opts.Username != "" {
		u.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		u.SetPassword(opts.Password)
	}

	return u, nil
}

func baseURL(opts Options) (*url.Url, *ValidationError) {
	field, raw := "href", opts.Href
	switch {
	case opts.Href != "":
	case opts.Origin != "":
		field, raw = "origin", opts.Origin
	case opts.Protocol != "":
		host := opts.Hostname
		if host == "" {
			host = opts.Host
		}
		field, raw = "protocol", withColon(opts.Protocol)+"//"+host
	default:
		return nil, missingProtocol()
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, malformed(field, "Invalid URL in `"+field+"`: "+strconv.Quote(raw), err)
	}
	return u, nil
}

// formEncodeSet is the application/x-www-form-urlencoded set: every byte
// except ASCII alphanumerics and *-._ is percent-encoded.
var formEncodeSet = func() *url.PercentEncodeSet {
	const safe = "*-._0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	var special []uint
	for b := uint(0x21); b <= 0x7e; b++ {
		if !strings.ContainsRune(safe, rune(b)) {
			special = append(special, b)
		}
	}
	return url.NewPercentEncodeSet(0x21, special...)
}()

// appendParams adds params after the existing query, each pair form-encoded
// so reserved characters in names and values cannot split a parameter.
func appendParams(u *url.Url, params SearchParams) {
	var b strings.Builder
	b.WriteString(strings.TrimPrefix(u.Search(), "?"))
	for _, p := range params {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		formEncode(&b, p.Name)
		b.WriteByte('=')
		formEncode(&b, p.Value)
	}
	u.SetSearch(b.String())
}

func formEncode(b *strings.Builder, s string) {
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case formEncodeSet.ByteShouldBeEncoded(c):
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
}

// splitPath cuts path at the first "?" into a pathname and a search string.
func splitPath(path string) (pathname, search string) {
	pathname, search, _ = strings.Cut(path, "?")
	return pathname, search
}

func withColon(protocol string) string {
	if strings.HasSuffix(protocol, ":") {
		return protocol
	}
	return protocol + ":"
}
