package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database engines
const (
	EngineMongo    = "mongodb"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

type (
	ServerConfig struct {
		Address            string
		DebugHost          string
		RequestTimeout     time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		CORSOrigins        []string
	}

	DatabaseConfig struct {
		Engine         string
		URI            string
		Name           string
		ConnectTimeout time.Duration
	}

	EmailConfig struct {
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Debug           bool
		TestMode        bool
		Build           string
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		RollbarToken    string
		Server          ServerConfig
		Database        DatabaseConfig
		Email           EmailConfig
	}
)

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "LearnTube")
	conf.SetDefault("secretKey", "ytb7-q1e^mx9!kd0z&ar4(w@3lu+c#hs_p8n$v2j*tgo5e=if")
	conf.SetDefault("frontendBaseURL", "http://localhost:5173")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.address", ":5000")
	conf.SetDefault("server.debugHost", ":5001")
	conf.SetDefault("server.requestTimeout", 15*time.Second)
	conf.SetDefault("server.shutdownTimeout", 10*time.Second)
	conf.SetDefault("server.corsOrigins", []string{"*"})

	conf.SetDefault("database.engine", EngineMongo)
	conf.SetDefault("database.uri", "mongodb://localhost:27017")
	conf.SetDefault("database.name", "learntube")
	conf.SetDefault("database.connectTimeout", 10*time.Second)

	conf.SetDefault("email.defaultFromEmail", "LearnTube <noreply@localhost>")
	conf.SetDefault("email.sendgridApiKey", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		conf.SetDefault("testMode", true)
		conf.SetDefault("database.engine", EngineMemory)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(conf.GetString("email.defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.email.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:             env,
		Debug:           conf.GetBool("debug"),
		TestMode:        conf.GetBool("testMode"),
		Build:           conf.GetString("build"),
		AppName:         conf.GetString("appName"),
		SecretKey:       conf.GetString("secretKey"),
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		RollbarToken:    conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         conf.GetString("server.address"),
			DebugHost:       conf.GetString("server.debugHost"),
			RequestTimeout:  conf.GetDuration("server.requestTimeout"),
			ShutdownTimeout: conf.GetDuration("server.shutdownTimeout"),
			// tokens are valid for 30 days, no refresh
			JWTExpirationDelta: 30 * 24 * time.Hour,
			CORSOrigins:        conf.GetStringSlice("server.corsOrigins"),
		},
		Database: DatabaseConfig{
			Engine:         conf.GetString("database.engine"),
			URI:            conf.GetString("database.uri"),
			Name:           conf.GetString("database.name"),
			ConnectTimeout: conf.GetDuration("database.connectTimeout"),
		},
		Email: EmailConfig{
			DefaultFromEmail: *fromEmail,
			SendgridAPIKey:   conf.GetString("email.sendgridApiKey"),
		},
	}
}

// Getwd returns the project root: the closest parent directory holding a go.mod file.
// go-test changes the working directory to the package being tested, so the cwd alone is not enough.
// Falls back to the cwd when no go.mod is found (e.g. a deployed binary).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
