package storage

import "net/url"

// BuildDSN composes a postgres URL from discrete connection settings.
func BuildDSN(host, port, user, password, database, sslmode string) string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + port,
		Path:     "/" + database,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}
