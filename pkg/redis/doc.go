// Package redis connects to Redis for the collector's shared deduplication history.
//
// Connect retries the initial ping so a collector started alongside Redis does not fail on a
// cold start:
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	client, err := redis.Connect(ctx, cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Healthcheck adapts a client to a readiness probe.
package redis
