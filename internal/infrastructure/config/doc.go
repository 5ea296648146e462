// Package config loads and validates the Hearth Core configuration.
//
// Loading is a three-step pipeline: defaults, then the YAML file, then
// HEARTH_* environment variable overrides. Validation runs last and
// collects every problem into one error so a bad file is fixed in one
// round trip.
//
// Secrets (broker passwords, InfluxDB tokens, the JWT secret) are best
// supplied via the environment overrides rather than the file. An
// empty security.jwt_secret leaves the event stream unauthenticated;
// only do that on a trusted LAN.
//
// Usage:
//
//	cfg, err := config.Load("configs/hearth.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
//
// The configuration is read once at startup and treated as immutable
// afterwards.
package config
