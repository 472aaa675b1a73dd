package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Provider holds the OAuth client credentials for one social provider.
type Provider struct {
	ClientID     string
	ClientSecret string // empty for providers that don't use one (Kakao)
	RedirectURI  string
}

type Config struct {
	Port            string
	MongoURI        string
	MongoDB         string
	JWTSecret       string
	AccessTTLMin    int
	RedisAddr       string
	RateLimitPerMin int
	RabbitURL       string
	Google          Provider
	Kakao           Provider
}

func Load() Config {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	return Config{
		Port:            getenv("APP_PORT", "8080"),
		MongoURI:        getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getenv("MONGO_DB", "auth_db"),
		JWTSecret:       getenv("JWT", "default_secret_key"),
		AccessTTLMin:    atoi(getenv("ACCESS_TTL_MIN", "60")),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RateLimitPerMin: atoi(getenv("RATE_LIMIT_PER_MIN", "30")),
		RabbitURL:       getenv("RABBIT_URL", ""),
		Google: Provider{
			ClientID:     getenv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getenv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getenv("GOOGLE_REDIRECT_URI", "http://localhost:3000/oauth/google"),
		},
		Kakao: Provider{
			ClientID:    getenv("KAKAO_CLIENT_ID", ""),
			RedirectURI: getenv("KAKAO_REDIRECT_URI", "http://localhost:3000/oauth/kakao"),
		},
	}
}

func atoi(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return 0
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
