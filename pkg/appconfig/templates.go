// pkg/appconfig/templates.go

package appconfig

import "text/template"

// Artifact templates are typed renderings, not substitutions into the
// upstream example files; the examples are only checked for presence as a
// fetch-integrity signal.

// DatabaseData fills database.yml.
type DatabaseData struct {
	Database string
	Role     string
	Password string
}

var databaseTemplate = template.Must(template.New("database.yml").Parse(`production:
  adapter: postgresql
  encoding: utf8
  host: localhost
  database: {{ .Database }}
  username: {{ .Role }}
  password: {{ .Password }}
  timeout: 5000
`))

// DomainData fills domain.yml.
type DomainData struct {
	Domain string
	UseTLS bool
}

var domainTemplate = template.Must(template.New("domain.yml").Parse(`production:
  domain: {{ .Domain }}
  ssl: {{ .UseTLS }}
`))

// MailData fills outgoing_mail.yml. Delivery stays on the local MTA;
// operators point this at a real relay after installation.
type MailData struct {
	Domain      string
	SenderEmail string
}

var mailTemplate = template.Must(template.New("outgoing_mail.yml").Parse(`production:
  address: localhost
  port: 25
  domain: {{ .Domain }}
  outgoing_address: {{ .SenderEmail }}
  default_name: Canvas Admin
`))

// SecurityData fills security.yml with the generated encryption key.
type SecurityData struct {
	EncryptionKey string
}

var securityTemplate = template.Must(template.New("security.yml").Parse(`production:
  encryption_key: {{ .EncryptionKey }}
`))

// cacheTemplate fills cache_store.yml, pointing sessions at the cache engine.
type CacheData struct {
	RedisURL string
}

var cacheTemplate = template.Must(template.New("cache_store.yml").Parse(`production:
  cache_store: redis_cache_store
  url: {{ .RedisURL }}
`))

// productionLocalDefault is the synthesized fallback for the one optional
// template. Everything else missing from the fetch is fatal; this override
// file ships empty-by-intent upstream, so safe defaults are acceptable.
const productionLocalDefault = `# Generated by canvasup: upstream example was absent.
config.force_ssl = false
config.log_level = :info
`
