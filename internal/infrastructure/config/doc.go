// Package config handles loading and validating Gray Logic Occupancy configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (GRAYLOGIC_*)
//   - Validation of every section, with all problems reported at once
//   - Conversion of the automation and catalog sections into facility types
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	settings, _ := cfg.Settings()
//	rooms := cfg.Rooms()
package config
