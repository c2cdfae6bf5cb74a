package config // package config loads application configuration from environment variables

import (
    "log"  // log is used to report configuration errors and halt execution
    "os"   // os provides access to environment variables
    "time" // time provides duration parsing for booking timeouts
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for the
// reservation hold policy, ints for limits.
type Config struct {
    Env                 string        // application environment (e.g. "dev", "prod")
    Port                string        // HTTP port to listen on
    DBUser              string        // database username
    DBPass              string        // database password (optional)
    DBHost              string        // database host address
    DBPort              string        // database port number
    DBName              string        // database name
    JWTSecret           string        // secret used to verify admin JWTs
    StripeSecretKey     string        // Stripe API secret key
    StripeWebhookSecret string        // Stripe webhook signing secret
    Currency            string        // ISO currency code for charges
    HoldTimeout         time.Duration // max time an uncommitted reserve may hold capacity
    SweepInterval       time.Duration // cadence of the stale-hold sweep
    RangeMaxDays        int           // max inclusive span of a range query
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Booking policy
// knobs are optional and fall back to sensible defaults.
func Load() Config {
    return Config{
        Env:                 must("APP_ENV"),                // environment (dev/test/prod)
        Port:                must("APP_PORT"),               // port to bind the HTTP server
        DBUser:              must("DB_USER"),                // database user
        DBPass:              os.Getenv("DB_PASS"),           // database password (empty allowed)
        DBHost:              must("DB_HOST"),                // database host
        DBPort:              must("DB_PORT"),                // database port
        DBName:              must("DB_NAME"),                // database name
        JWTSecret:           must("JWT_SECRET"),             // secret for admin route tokens
        StripeSecretKey:     must("STRIPE_SECRET_KEY"),      // Stripe secret key
        StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),  // Stripe webhook signing secret
        Currency:            envStr("BOOKING_CURRENCY", "eur"),
        HoldTimeout:         envDur("RESERVATION_HOLD_TIMEOUT", 30*time.Minute),
        SweepInterval:       envDur("RESERVATION_SWEEP_INTERVAL", time.Minute),
        RangeMaxDays:        envInt("AVAILABILITY_RANGE_MAX_DAYS", 365),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
