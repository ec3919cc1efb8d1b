package main

import (
	"log"

	"github.com/djlord-it/easy-views/internal/config"
)

// logConfigWarnings flags deployments that work but lose data or accuracy.
func logConfigWarnings(cfg *config.Config) {
	if cfg.SessionBackend == config.BackendMemory {
		log.Println("easyviews: WARNING [P0]: SESSION_BACKEND=memory; cooldowns are per instance and lost on restart, " +
			"so views behind a load balancer are double counted")
	}
	if cfg.CacheEnabled && cfg.CacheBackend == config.BackendMemory {
		log.Println("easyviews: WARNING [P1]: CACHE_ENABLED=true with CACHE_BACKEND=memory; " +
			"each instance serves its own cached counts")
	}
	if !cfg.MetricsEnabled {
		log.Println("easyviews: WARNING [P1]: METRICS_ENABLED=false; no visibility into rejections or cache hit rate")
	}
	if cfg.RetentionStr == "" {
		log.Println("easyviews: INFO: RETENTION not set; view records are kept forever")
	}
	if cfg.APIJWTKey == "" {
		log.Println("easyviews: INFO: API_JWT_KEY not set; destructive endpoints are disabled")
	}
}
