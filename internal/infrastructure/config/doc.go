// Package config handles loading and validating hadevice configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HADEVICE_* environment variables
//   - Validation of required fields and entity definitions
//   - Default value handling
//
// Security Considerations:
//   - Broker credentials and the InfluxDB token should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/hadevice.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.Name)
package config
