package registry

import (
	"os"

	"forecast-service/service/config"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func configFor(registryType, dir string) config.RegistryConfig {
	cfg := config.Default().Registry
	cfg.Type = registryType
	cfg.ModelDir = dir
	return cfg
}
