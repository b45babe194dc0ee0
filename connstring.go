package pgsqlkit

import "strings"

// MakeConnectionString renders the stored credentials as a libpq
// keyword/value string. An explicit ConnectionString wins.
func (c *Connection) MakeConnectionString() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	cr := c.Credentials
	if cr.Host == "" {
		cr.Host = DefaultHost
	}
	if cr.Port == "" {
		cr.Port = DefaultPort
	}
	if cr.DBName == "" {
		cr.DBName = DefaultDBName
	}

	var b strings.Builder
	add := func(key, val string) {
		if val == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quoteConnValue(val))
	}
	add("host", cr.Host)
	add("port", cr.Port)
	add("dbname", cr.DBName)
	add("user", cr.User)
	add("password", cr.Password)
	add("sslmode", cr.SSLMode)
	add("service", cr.Service)
	add("krbsrvname", cr.KrbsrvName)
	add("options", cr.Options)
	return b.String()
}

// quoteConnValue single-quotes values containing spaces, quotes or
// backslashes, escaping the latter two with a backslash.
func quoteConnValue(v string) string {
	if !strings.ContainsAny(v, " '\\\t\n") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
