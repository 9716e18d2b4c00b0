package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Server struct {
		Port            int           `yaml:"port" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gt=0"`
		WriteTimeout    time.Duration `yaml:"writeTimeout" validate:"gt=0"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
		AllowedOrigins  []string      `yaml:"allowedOrigins"`
		RatePerMinute   int           `yaml:"ratePerMinute" validate:"gte=0"`
		RateBurst       int           `yaml:"rateBurst" validate:"gte=0"`
	} `yaml:"server"`

	// Agent is the runtime the capability is registered with.
	Agent struct {
		APIKey string `yaml:"apiKey" validate:"required"`
	} `yaml:"agent"`

	Source struct {
		Account           string        `yaml:"account" validate:"required,xhandle"`
		BearerToken       string        `yaml:"bearerToken" validate:"required"`
		BaseURL           string        `yaml:"baseURL" validate:"omitempty,url"`
		RequestsPerSecond float64       `yaml:"requestsPerSecond" validate:"gte=0"`
		Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	} `yaml:"source"`

	Analysis struct {
		Provider    string        `yaml:"provider" validate:"oneof=openai gemini claude"`
		APIKey      string        `yaml:"apiKey" validate:"required"`
		Model       string        `yaml:"model"`
		BaseURL     string        `yaml:"baseURL" validate:"omitempty,url"`
		MaxTokens   int           `yaml:"maxTokens" validate:"gte=0"`
		Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
		MaxAttempts int           `yaml:"maxAttempts" validate:"min=1,max=10"`
		BaseDelay   time.Duration `yaml:"baseDelay" validate:"gt=0"`
		MaxDelay    time.Duration `yaml:"maxDelay" validate:"gtefield=BaseDelay"`
		MaxInFlight int           `yaml:"maxInFlight" validate:"min=1,max=64"`
	} `yaml:"analysis"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint" validate:"required_if=Enabled true"`
		AccessKey  string `yaml:"accessKey" validate:"required_if=Enabled true"`
		SecretKey  string `yaml:"secretKey" validate:"required_if=Enabled true"`
		BucketName string `yaml:"bucketName" validate:"required_if=Enabled true"`
		Region     string `yaml:"region"`
		Prefix     string `yaml:"prefix"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Email struct {
		Enabled    bool     `yaml:"enabled"`
		SMTPServer string   `yaml:"smtpServer" validate:"required_if=Enabled true"`
		SMTPPort   int      `yaml:"smtpPort" validate:"gte=0,lte=65535"`
		SMTPUser   string   `yaml:"smtpUser"`
		SMTPPass   string   `yaml:"smtpPass"`
		From       string   `yaml:"from" validate:"required_if=Enabled true"`
		To         []string `yaml:"to" validate:"required_if=Enabled true,dive,email"`
	} `yaml:"email"`

	Log struct {
		Level    string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
		Format   string `yaml:"format" validate:"omitempty,oneof=json text"`
		Detailed bool   `yaml:"detailed"`
		Tracing  bool   `yaml:"tracing"`
	} `yaml:"log"`
}

// Default returns the configuration used before the file and environment apply.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 5 * time.Minute // a batch waits on the generative backend
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RatePerMinute = 30
	c.Server.RateBurst = 5

	c.Source.Account = "aixbt_agent"
	c.Source.BaseURL = "https://api.twitter.com"
	c.Source.RequestsPerSecond = 1
	c.Source.Timeout = 15 * time.Second

	c.Analysis.Provider = "openai"
	c.Analysis.Model = "gpt-4o"
	c.Analysis.MaxTokens = 2048
	c.Analysis.Timeout = 30 * time.Second
	c.Analysis.MaxAttempts = 3
	c.Analysis.BaseDelay = time.Second
	c.Analysis.MaxDelay = 10 * time.Second
	c.Analysis.MaxInFlight = 4

	c.Minio.Prefix = "digests"
	c.Email.SMTPPort = 587

	c.Log.Level = "INFO"
	c.Log.Format = "json"
	return &c
}

// Error is a configuration problem that prevents startup.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// providerKeyEnv is the credential variable of each analysis provider.
var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// Load reads .env, the YAML file at CONFIG_PATH (default config.yaml, optional),
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || path == "" {
		path = DefaultPath
	}
	return load(path, !explicit, os.LookupEnv)
}

// LoadFile is Load with an explicit, required file path.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()
	return load(path, false, os.LookupEnv)
}

func load(path string, optional bool, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && optional:
		case err != nil:
			return nil, &Error{Problems: []string{fmt.Sprintf("read %s: %v", path, err)}}
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &Error{Problems: []string{fmt.Sprintf("parse %s: %v", path, err)}}
			}
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var problems []string
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %q is not a number", key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %q is not a boolean", key, v))
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}

	num("PORT", &c.Server.Port)
	str("OPENSERV_API_KEY", &c.Agent.APIKey)

	str("TWITTER_BEARER_TOKEN", &c.Source.BearerToken)
	str("TWITTER_ACCOUNT", &c.Source.Account)
	str("TWITTER_API_BASE_URL", &c.Source.BaseURL)

	str("AI_PROVIDER", &c.Analysis.Provider)
	c.Analysis.Provider = strings.ToLower(c.Analysis.Provider)
	if key, ok := providerKeyEnv[c.Analysis.Provider]; ok {
		str(key, &c.Analysis.APIKey)
	}
	str("AI_MODEL", &c.Analysis.Model)
	str("AI_BASE_URL", &c.Analysis.BaseURL)
	dur("AI_TIMEOUT", &c.Analysis.Timeout)
	num("AI_MAX_ATTEMPTS", &c.Analysis.MaxAttempts)
	num("AI_MAX_IN_FLIGHT", &c.Analysis.MaxInFlight)

	flag("MINIO_ENABLED", &c.Minio.Enabled)
	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Minio.BucketName)

	flag("EMAIL_ENABLED", &c.Email.Enabled)
	str("SMTP_SERVER", &c.Email.SMTPServer)
	num("SMTP_PORT", &c.Email.SMTPPort)
	str("SMTP_USER", &c.Email.SMTPUser)
	str("SMTP_PASS", &c.Email.SMTPPass)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	flag("LOG_DETAILED", &c.Log.Detailed)
	flag("LOG_TRACING_ENABLED", &c.Log.Tracing)

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

var xHandle = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("xhandle", func(fl validator.FieldLevel) bool {
		return xHandle.MatchString(fl.Field().String())
	})
	return v
}

// hints name what to set for the fields a deployment most often gets wrong.
var hints = map[string]string{
	"Config.Agent.APIKey":       "set OPENSERV_API_KEY (agent.apiKey)",
	"Config.Source.BearerToken": "set TWITTER_BEARER_TOKEN (source.bearerToken)",
	"Config.Source.Account":     "set TWITTER_ACCOUNT (source.account) to an X username without @",
	"Config.Analysis.Provider":  "set AI_PROVIDER to openai, gemini or claude",
	"Config.Minio.Endpoint":     "set MINIO_ENDPOINT or disable minio",
	"Config.Minio.AccessKey":    "set MINIO_ACCESS_KEY or disable minio",
	"Config.Minio.SecretKey":    "set MINIO_SECRET_KEY or disable minio",
	"Config.Minio.BucketName":   "set MINIO_BUCKET or disable minio",
	"Config.Email.SMTPServer":   "set SMTP_SERVER or disable email",
}

// Validate reports every invalid field as one *Error.
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Problems: []string{err.Error()}}
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.StructNamespace()
		switch {
		case ns == "Config.Analysis.APIKey":
			env := providerKeyEnv[c.Analysis.Provider]
			if env == "" {
				env = "the provider API key"
			}
			problems = append(problems, fmt.Sprintf("%s is required for analysis provider %q", env, c.Analysis.Provider))
		case hints[ns] != "":
			problems = append(problems, fmt.Sprintf("%s: %s", ns, hints[ns]))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s %s", ns, fe.Tag(), fe.Param()))
		}
	}
	return &Error{Problems: problems}
}
