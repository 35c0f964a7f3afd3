// Command cm360-mcp serves the CM360 access layer as an MCP server over
// stdio. All logging goes to stderr; stdout carries the protocol.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/raydius/cm360-mcp/internal/mcpserver"
	"github.com/raydius/cm360-mcp/pkg/auth"
	"github.com/raydius/cm360-mcp/pkg/cache"
	"github.com/raydius/cm360-mcp/pkg/client"
	"github.com/raydius/cm360-mcp/pkg/cm360"
	"github.com/raydius/cm360-mcp/pkg/config"
	"github.com/raydius/cm360-mcp/pkg/logging"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", os.Getenv("CM360_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallbackLogger := logging.Setup(logging.DefaultConfig())
		fallbackLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	service, err := buildService(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build CM360 service")
	}

	if err := mcpserver.New(service, version).ServeStdio(); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

// buildService wires config into the client stack: token source, rate
// gate, optional Redis cache, and the resource service.
func buildService(cfg *config.Config, logger zerolog.Logger) (*cm360.Service, error) {
	key, err := cfg.LoadServiceAccountKey()
	if err != nil {
		return nil, err
	}

	jwtSource, err := auth.NewJWTSource(key, cfg.Auth.Scopes)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewCachedSource(jwtSource)

	var cacheManager *cache.Manager
	if cfg.Cache.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Degrade to direct upstream calls rather than refusing to start.
			logger.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unreachable, response cache disabled")
		} else {
			cacheManager, err = cache.NewManager(redisClient, cfg.Cache.TTL.Std())
			if err != nil {
				return nil, err
			}
			logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Response cache enabled")
		}
	}

	cm360Client, err := client.New(client.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		TokenSource: tokens,
		UserAgent:   cfg.Upstream.UserAgent,
		Timeout:     cfg.Upstream.Timeout.Std(),
		RateLimit:   cfg.Upstream.RateLimit,
		RateBurst:   cfg.Upstream.RateBurst,
		Cache:       cacheManager,
	})
	if err != nil {
		return nil, err
	}

	return cm360.NewService(cm360Client, cm360.WithMaxPages(cfg.Pagination.MaxPages)), nil
}
