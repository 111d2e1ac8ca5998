// Package config loads the declarative routes file and process settings
// and turns them into the dispatcher's configuration collaborator.
//
// A routes file is YAML or TOML, chosen by extension:
//
//	settings:
//	  site: demo
//	caches:
//	  - name: primary
//	    type: memory
//	    config: {ttl: 5m}
//	loggers:
//	  - name: main
//	    type: json
//	requests:
//	  home:
//	    cache: true
//	    commands:
//	      - name: greet
//	        type: echo
//	        params:
//	          - name: text
//	            sources: ["get:name", "context:user"]
//	            default: world
//
// Catalog builds a fresh chain.Request, with fresh command instances, on
// every call to Request.
package config
