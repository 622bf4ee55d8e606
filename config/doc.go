// Package config loads locatord settings.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file (locatord.yaml in . or ./configs, or the path in LOCATOR_CONFIG),
// a .env file in the working directory, and LOCATOR_* environment variables
// (LOCATOR_STORE_KIND sets store.kind). String values holding credentials may
// reference ${VAR}; an unset VAR is a load error.
//
// The chain section describes the fallback chain the daemon serves:
//
//	chain:
//	  steps:
//	    - kind: last_known
//	      provider: network
//	      max_age: 1h
//	    - kind: live
//	      provider: gps
//	      timeout: 30s
//	      ignore: [request_timeout]
//	  return_default_on_error: false
package config
