package config

import (
	"encoding/base64"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisURL string

	ServerPort string

	JWTSecret string

	// Web-push key material handed to fediverse servers on subscribe.
	PushEndpointBase string
	PushP256DH       []byte
	PushAuth         []byte

	// FCM credentials for the badge sink. Badge pushes are skipped when
	// the project ID is empty.
	FCMProjectID   string
	FCMClientEmail string
	FCMPrivateKey  string

	WorkerCount int
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount <= 0 {
		workerCount = 2
	}

	p256dh, err := base64.RawURLEncoding.DecodeString(os.Getenv("PUSH_P256DH"))
	if err != nil {
		log.Println("PUSH_P256DH is not valid base64url, push subscribe will be disabled")
		p256dh = nil
	}
	auth, err := base64.RawURLEncoding.DecodeString(os.Getenv("PUSH_AUTH"))
	if err != nil {
		log.Println("PUSH_AUTH is not valid base64url, push subscribe will be disabled")
		auth = nil
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		RedisURL: redisURL,

		ServerPort: serverPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		PushEndpointBase: os.Getenv("PUSH_ENDPOINT_BASE"),
		PushP256DH:       p256dh,
		PushAuth:         auth,

		FCMProjectID:   os.Getenv("FCM_PROJECT_ID"),
		FCMClientEmail: os.Getenv("FCM_CLIENT_EMAIL"),
		FCMPrivateKey:  os.Getenv("FCM_PRIVATE_KEY"),

		WorkerCount: workerCount,
	}, nil
}
