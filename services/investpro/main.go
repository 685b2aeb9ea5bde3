// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/auth"
	"github.com/relabs-tech/investpro/core/backend"
	"github.com/relabs-tech/investpro/core/csql"
	"github.com/relabs-tech/investpro/core/fake"
	"github.com/relabs-tech/investpro/core/logger"
	"github.com/relabs-tech/investpro/core/profiles"
	"github.com/relabs-tech/investpro/core/supabase"
)

// defaultSecretKey is only good for development
const defaultSecretKey = "asdf#FGSgvasgf$5$WGT"

// Service holds the configuration for this service
//
// use SUPABASE_URL="https://<project>.supabase.co" and SUPABASE_KEY="<anon key>", or
// BACKEND=postgres with POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker", or BACKEND=memory for development without any external service.
type Service struct {
	SecretKey           string        `env:"SECRET_KEY,default=asdf#FGSgvasgf$5$WGT" description:"the HS256 secret for session tokens"`
	SupabaseURL         string        `env:"SUPABASE_URL" description:"the URL of the Supabase project"`
	SupabaseKey         string        `env:"SUPABASE_KEY" description:"the API key of the Supabase project"`
	Backend             string        `env:"BACKEND,default=supabase" description:"where profiles live: supabase, postgres or memory"`
	Postgres            string        `env:"POSTGRES" description:"the connection string for the Postgres DB without password"`
	PostgresPassword    string        `env:"POSTGRES_PASSWORD" description:"password to the Postgres DB"`
	PostgresSchema      string        `env:"POSTGRES_SCHEMA,default=public" description:"the schema of the profiles table"`
	PostgresEnsureTable bool          `env:"POSTGRES_ENSURE_TABLE,default=false" description:"create the profiles table if it does not exist"`
	CORSOrigins         string        `env:"CORS_ORIGINS,default=*" description:"comma separated list of allowed origins"`
	Host                string        `env:"HOST,default=0.0.0.0" description:"the interface to listen on"`
	Port                string        `env:"PORT,default=5001" description:"the port to listen on"`
	StaticDir           string        `env:"STATIC_DIR,default=static" description:"the directory of the built frontend"`
	LogLevel            string        `env:"LOG_LEVEL,default=info" description:"The level used for logger, can be debug, warning, info, error"`
	TokenValidity       time.Duration `env:"TOKEN_VALIDITY,default=24h" description:"how long session tokens are valid"`
	LocalAdminEmail     string        `env:"LOCAL_ADMIN_EMAIL" description:"email of the local admin, disabled if empty"`
	LocalAdminPassword  string        `env:"LOCAL_ADMIN_PASSWORD" description:"password or bcrypt hash of the local admin"`
	LoginRatePerSecond  float64       `env:"LOGIN_RATE_PER_SECOND,default=1" description:"login and register attempts per second and client, 0 disables the limit"`
	LoginRateBurst      int           `env:"LOGIN_RATE_BURST,default=10" description:"burst of login and register attempts per client"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		panic(err)
	}
	logger.InitLogger(logger.ParseLevel(service.LogLevel))
	rlog := logger.Default()

	if service.SecretKey == defaultSecretKey {
		rlog.Warnln("SECRET_KEY is not set, using the insecure development key")
	}
	codec, err := access.NewTokenCodec(service.SecretKey, service.TokenValidity)
	if err != nil {
		panic(err)
	}

	identity, store, closer := service.collaborators()
	defer closer()

	localAdmin := &access.LocalAdmin{Email: service.LocalAdminEmail, Password: service.LocalAdminPassword}
	if localAdmin.Enabled() {
		rlog.Infoln("local admin enabled for", localAdmin.Email)
	}

	staticDir, _ := filepath.Abs(service.StaticDir)
	if _, err := os.Stat(filepath.Join(staticDir, "index.html")); err != nil {
		rlog.Warnln("frontend not found in", staticDir, "- build it with: cd frontend && npm run build")
	}

	router := mux.NewRouter()
	b := backend.New(&backend.Builder{
		Router: router,
		Authenticator: auth.New(&auth.Builder{
			Identity:   identity,
			Profiles:   store,
			Codec:      codec,
			LocalAdmin: localAdmin,
		}),
		Profiles:    profiles.New(store),
		Guard:       access.NewGuard(codec),
		StaticDir:   staticDir,
		CORSOrigins: splitList(service.CORSOrigins),
		LoginRate:   rate.Limit(service.LoginRatePerSecond),
		LoginBurst:  service.LoginRateBurst,
		BackendName: service.Backend,
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(service.Host, service.Port),
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	rlog.Infoln("listen on", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rlog.WithError(err).Errorln("server failed")
		return
	}
	rlog.Infoln("server stopped")
}

// collaborators creates the identity service and the profile store for the
// configured backend. Both are nil if the backend is not configured; the API
// then answers with 503 where they are needed.
func (s *Service) collaborators() (core.IdentityService, core.ProfileStore, func()) {
	rlog := logger.Default()
	var identity core.IdentityService
	if s.SupabaseURL != "" && s.SupabaseKey != "" {
		project, err := supabase.New(s.SupabaseURL, s.SupabaseKey)
		if err != nil {
			panic(err)
		}
		rlog.Infoln("identity service:", s.SupabaseURL)
		identity = project.Auth()
		if s.Backend == "supabase" {
			return identity, project.Profiles(), func() {}
		}
	}

	switch s.Backend {
	case "supabase":
		rlog.Warnln("SUPABASE_URL and SUPABASE_KEY are not set, authentication and profiles are unavailable")
		return nil, nil, func() {}
	case "postgres":
		if s.Postgres == "" {
			panic("BACKEND=postgres requires POSTGRES")
		}
		db := csql.OpenWithSchema(s.Postgres, s.PostgresPassword, s.PostgresSchema)
		store := csql.NewProfileStore(db)
		if s.PostgresEnsureTable {
			if err := store.EnsureProfilesTable(context.Background()); err != nil {
				panic(err)
			}
		}
		return identity, store, func() { db.Close() }
	case "memory":
		rlog.Warnln("using the in-memory backend, all data is lost on exit")
		memory := fake.New()
		return memory, memory, func() {}
	}
	panic("unknown BACKEND " + s.Backend)
}

func splitList(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
