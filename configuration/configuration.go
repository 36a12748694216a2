package configuration

const (
	BackendCollection = "collection"
	BackendSqlite     = "sqlite"
	BackendBolt       = "bolt"
	BackendMemory     = "memory"
)

type Configuration struct {
	HttpAddr          string `usage:"HTTP address"`
	Dir               string `usage:"data directory, keeps table schemas and collection files"`
	Backend           string `usage:"where records are stored: collection, sqlite, bolt or memory"`
	SchemaDir         string `usage:"directory with yaml/json schemas imported at startup"`
	EnableCompression bool   `usage:"gzip responses when the client accepts it"`
	LogLevel          string `usage:"debug, info, warn or error"`
	Version           bool   `usage:"show version and exit"`
	ShowBanner        bool   `usage:"show big banner"`
	ShowConfig        bool   `usage:"print config"`
}

func Default() Configuration {
	return Configuration{
		HttpAddr:          "127.0.0.1:8080",
		Dir:               "data",
		Backend:           BackendCollection,
		EnableCompression: true,
		LogLevel:          "info",
		ShowBanner:        true,
	}
}
