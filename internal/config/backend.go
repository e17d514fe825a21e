package config

// ConfigBackend abstracts where persisted settings live. The default is a
// flat JSON file under $XDG_CONFIG_HOME/fitbuddy.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
