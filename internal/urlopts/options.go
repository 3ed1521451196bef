package urlopts

// Options describes a request URL the way HTTP client callers tend to spell
// it: as a whole href, as an origin plus path, or as discrete components.
// Every field is optional. String fields count as set when non-empty, Port
// when non-zero, SearchParams when non-nil and Auth when non-nil.
type Options struct {
	Href   string `json:"href,omitempty" yaml:"href,omitempty"`
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`

	// Path is pathname and search in one string, e.g. "/x?a=1".
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	Protocol     string       `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Host         string       `json:"host,omitempty" yaml:"host,omitempty"`
	Hostname     string       `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Port         int          `json:"port,omitempty" yaml:"port,omitempty"`
	Pathname     string       `json:"pathname,omitempty" yaml:"pathname,omitempty"`
	Search       string       `json:"search,omitempty" yaml:"search,omitempty"`
	SearchParams SearchParams `json:"searchParams,omitempty" yaml:"searchParams,omitempty"`
	Hash         string       `json:"hash,omitempty" yaml:"hash,omitempty"`

	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// Auth is the legacy "user:pass" form. It is always rejected.
	Auth *string `json:"auth,omitempty" yaml:"auth,omitempty"`
}

const maxPort = 65535

// Validate runs the option guards in order and returns the first violation.
func (o Options) Validate() error {
	if err := o.validate(); err != nil {
		return err
	}
	return nil
}

func (o Options) validate() *ValidationError {
	if o.Auth != nil {
		return deprecated("auth", "username", "password")
	}

	if o.Path != "" {
		if o.Pathname != "" {
			return mutuallyExclusive("path", "pathname")
		}
		if o.Search != "" {
			return mutuallyExclusive("path", "search")
		}
		if o.SearchParams != nil {
			return mutuallyExclusive("path", "searchParams")
		}
	}

	if o.Search != "" && o.SearchParams != nil {
		return mutuallyExclusive("search", "searchParams")
	}

	if o.Port < 0 || o.Port > maxPort {
		return malformed("port", "Parameter `port` must be between 0 and 65535.", nil)
	}

	return nil
}

// Merge layers override on top of base. Fields set in override replace the
// ones in base, except SearchParams which are concatenated with base first.
func Merge(base, override Options) Options {
	out := base

	setString(&out.Href, override.Href)
	setString(&out.Origin, override.Origin)
	setString(&out.Path, override.Path)
	setString(&out.Protocol, override.Protocol)
	setString(&out.Host, override.Host)
	setString(&out.Hostname, override.Hostname)
	setString(&out.Pathname, override.Pathname)
	setString(&out.Search, override.Search)
	setString(&out.Hash, override.Hash)
	setString(&out.Username, override.Username)
	setString(&out.Password, override.Password)

	if override.Port != 0 {
		out.Port = override.Port
	}
	if override.Auth != nil {
		out.Auth = override.Auth
	}
	if override.SearchParams != nil {
		merged := make(SearchParams, 0, len(base.SearchParams)+len(override.SearchParams))
		merged = append(merged, base.SearchParams...)
		merged = append(merged, override.SearchParams...)
		out.SearchParams = merged
	} else if base.SearchParams != nil {
		out.SearchParams = append(SearchParams{}, base.SearchParams...)
	}

	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
