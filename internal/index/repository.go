package index

// Repository identifies a named upload target on a package index.
// Credentials may be empty for indexes that accept anonymous uploads.
type Repository struct {
	Name     string
	URL      string
	Username string
	Password string
}

// HasCredentials reports whether the repository carries a username.
// API-token auth uses the literal username "__token__" with the token
// as password, so a username alone is enough to enable basic auth.
func (r Repository) HasCredentials() bool {
	return r.Username != ""
}

// Builtins returns the upload targets known without any configuration.
// Targets declared in the config file are merged over these by name, so
// a config entry named "pypi" replaces the default rather than adding a
// second target.
func Builtins() map[string]Repository {
	return map[string]Repository{
		"pypi": {
			Name: "pypi",
			URL:  "https://upload.pypi.org/legacy/",
		},
		"testpypi": {
			Name: "testpypi",
			URL:  "https://test.pypi.org/legacy/",
		},
	}
}
