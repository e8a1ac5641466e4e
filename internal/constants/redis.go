package constants

// Redis key prefixes
const (
	// RedisKeyRevokedSession 已注销的刷新令牌 (jti)
	RedisKeyRevokedSession = "session:revoked:"

	// RedisKeyRateLimit 限流计数器
	RedisKeyRateLimit = "ratelimit:"
)
