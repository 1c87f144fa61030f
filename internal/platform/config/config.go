// Package config builds process configuration from the environment plus an
// optional YAML policy file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	integritymodels "dividend/internal/integrity/models"
	"dividend/internal/settlement/retry"
	"dividend/internal/ubi/pool"
	pstrings "dividend/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	LogLevel        string
	OperatorJWTKey  string
	OperatorIssuer  string
	ShutdownTimeout time.Duration
	WriteTimeout    time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// WalletConfig is the outbound wallet provider boundary.
type WalletConfig struct {
	URL           string
	SignerID      string
	Secret        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// LedgerConfig points at the ledger that serves decay figures, treasury
// figures and the wallet directory, and at the remote attestation endpoint.
// An empty URL selects the static development collaborators.
type LedgerConfig struct {
	URL            string
	Token          string
	AttestationURL string
	Timeout        time.Duration
}

// AttestationConfig holds the verification keyrings and the signing identity
// used when the orchestrator attests its own epochs.
type AttestationConfig struct {
	MACKeys         map[string]string
	PublicKeys      map[string]string
	RequiredSigners []string
	MACSignerID     string
	MACSecret       string
	SigSignerID     string
	PrivateKey      string
}

type DispatcherConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

type IntegrityConfig struct {
	RingCapacity int
	DefaultSpot  float64
	Retention    time.Duration
}

// RateLimitConfig bounds unauthenticated ingestion per client IP. A zero
// Limit disables the limiter.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

type EligibilityConfig struct {
	MinWalletAgeDays int
	MinActivity      int
}

// Aggregation defaults for the TWA used at epoch transitions.
type Aggregation struct {
	LookbackDays int `yaml:"lookback_days"`
	MinSamples   int `yaml:"min_samples"`
}

// PolicyDocument is the shape of POLICY_FILE.
type PolicyDocument struct {
	UBI         pool.Policy  `yaml:"ubi"`
	Retry       retry.Policy `yaml:"settlement_retry"`
	Aggregation Aggregation  `yaml:"aggregation"`
}

// Config is the full process configuration.
type Config struct {
	Server      Server
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Wallet      WalletConfig
	Ledger      LedgerConfig
	Attestation AttestationConfig
	Dispatcher  DispatcherConfig
	Integrity   IntegrityConfig
	Eligibility EligibilityConfig
	RateLimit   RateLimitConfig
	Policy      PolicyDocument
}

func DefaultPolicyDocument() PolicyDocument {
	return PolicyDocument{
		UBI:         pool.DefaultPolicy(),
		Retry:       retry.DefaultPolicy(),
		Aggregation: Aggregation{LookbackDays: integritymodels.DefaultLookbackDays, MinSamples: integritymodels.DefaultMinSamples},
	}
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            getEnv("DIVIDEND_ADDR", ":8080"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			OperatorJWTKey:  getEnv("OPERATOR_JWT_KEY", "dev-operator-key-change-in-production"),
			OperatorIssuer:  getEnv("OPERATOR_JWT_ISSUER", "dividend"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    getList("KAFKA_BROKERS"),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "dividend.audit"),
		},
		Wallet: WalletConfig{
			URL:           os.Getenv("WALLET_PROVIDER_URL"),
			SignerID:      getEnv("WALLET_SIGNER_ID", "dividend"),
			Secret:        os.Getenv("WALLET_HMAC_SECRET"),
			Timeout:       getDuration("WALLET_TIMEOUT", 8*time.Second),
			RatePerSecond: getFloat("WALLET_RATE_PER_SECOND", 20),
			Burst:         getInt("WALLET_BURST", 5),
		},
		Ledger: LedgerConfig{
			URL:            os.Getenv("LEDGER_URL"),
			Token:          os.Getenv("LEDGER_TOKEN"),
			AttestationURL: os.Getenv("LEDGER_ATTESTATION_URL"),
			Timeout:        getDuration("LEDGER_TIMEOUT", 10*time.Second),
		},
		Attestation: AttestationConfig{
			MACKeys:         getKeyring("ATTEST_MAC_KEYS"),
			PublicKeys:      getKeyring("ATTEST_PUBLIC_KEYS"),
			RequiredSigners: getList("ATTEST_REQUIRED_SIGNERS"),
			MACSignerID:     os.Getenv("ATTEST_MAC_SIGNER_ID"),
			MACSecret:       os.Getenv("ATTEST_MAC_SECRET"),
			SigSignerID:     os.Getenv("ATTEST_SIG_SIGNER_ID"),
			PrivateKey:      os.Getenv("ATTEST_PRIVATE_KEY"),
		},
		Dispatcher: DispatcherConfig{
			Enabled:   getEnv("DISPATCHER_ENABLED", "true") == "true",
			Interval:  getDuration("DISPATCHER_INTERVAL", 5*time.Second),
			BatchSize: getInt("DISPATCHER_BATCH_SIZE", 50),
		},
		Integrity: IntegrityConfig{
			RingCapacity: getInt("GI_RING_CAPACITY", 50_000),
			DefaultSpot:  getFloat("GI_DEFAULT_SPOT", 0),
			Retention:    getDuration("GI_RETENTION", 400*24*time.Hour),
		},
		Eligibility: EligibilityConfig{
			MinWalletAgeDays: getInt("ELIGIBILITY_MIN_WALLET_AGE_DAYS", 30),
			MinActivity:      getInt("ELIGIBILITY_MIN_ACTIVITY", 5),
		},
		RateLimit: RateLimitConfig{
			Limit:  getInt("INGEST_RATE_LIMIT", 120),
			Window: getDuration("INGEST_RATE_WINDOW", time.Minute),
		},
		Policy: DefaultPolicyDocument(),
	}

	if path := os.Getenv("POLICY_FILE"); path != "" {
		doc, err := LoadPolicyFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = doc
	}
	return cfg, nil
}

// LoadPolicyFile reads a YAML policy document. Sections missing from the file
// keep their defaults.
func LoadPolicyFile(path string) (PolicyDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PolicyDocument{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (PolicyDocument, error) {
	doc := DefaultPolicyDocument()
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return PolicyDocument{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := doc.UBI.Validate(); err != nil {
		return PolicyDocument{}, fmt.Errorf("invalid ubi policy: %w", err)
	}
	doc.Retry = doc.Retry.Normalize()
	if doc.Aggregation.LookbackDays <= 0 {
		doc.Aggregation.LookbackDays = integritymodels.DefaultLookbackDays
	}
	if doc.Aggregation.MinSamples <= 0 {
		doc.Aggregation.MinSamples = integritymodels.DefaultMinSamples
	}
	return doc, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getList(key string) []string {
	return pstrings.SplitList(os.Getenv(key))
}

// getKeyring parses "signer=key,signer2=key2".
func getKeyring(key string) map[string]string {
	return pstrings.ParsePairs(os.Getenv(key))
}
