package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "carrental"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultJWTIssuer = ""

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout   = 30 * time.Second
	DefaultOperationTimeout = 5 * time.Second
	DefaultIdempotencyTTL   = 24 * time.Hour
	DefaultMaxRequestSize   = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultServiceFeeRate = 0.10
	DefaultBookingLockTTL = 30 * time.Second

	DefaultPaginationLimit = 100
	DefaultPageSize        = 10
)
