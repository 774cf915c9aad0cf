// Package config loads the bridge configuration.
//
// Load starts from Default(), overlays the YAML file, applies KLF200_*
// environment variables and finally runs Validate, which reports every
// problem at once. Keep the gateway password out of the file: set
// KLF200_GATEWAY_PASSWORD instead, or restrict the file to mode 0600.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
