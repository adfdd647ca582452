package mainboilerplate

import (
	"os"

	petname "github.com/dustinkirkland/golang-petname"
)

// ServiceConfig identifies the services process.
type ServiceConfig struct {
	Name string `long:"name" env:"NAME" description:"Unique name of this services process, used in logs. Auto-generated if not set"`
}

// InstanceName returns the configured Name, or generates one qualified by the hostname.
func (cfg ServiceConfig) InstanceName() string {
	if cfg.Name != "" {
		return cfg.Name
	}
	var name = petname.Generate(2, "-")
	if host, err := os.Hostname(); err == nil {
		name = host + "-" + name
	}
	return name
}
