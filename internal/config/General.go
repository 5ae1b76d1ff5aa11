package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port the query API listens on.
	WebPort string

	// OwnerAddr administers pools and the incentives engine.
	OwnerAddr string
	// GuardianAddr may edit the blocked-token list alongside the owner.
	GuardianAddr string
	// FactoryAddr is the pair registry address pools are created under.
	FactoryAddr string
	// MakerAddr collects the maker share of swap commissions.
	MakerAddr string
	// VestingAddr funds protocol emission payouts.
	VestingAddr string

	// EmissionDenom is the protocol emission token.
	EmissionDenom string
	// TokensPerSecond is the protocol emission rate as a decimal string.
	TokensPerSecond string
	// IncentivizationFeeDenom and IncentivizationFeeAmount price the fee
	// charged when a new reward token is registered on a pool.
	IncentivizationFeeDenom  string
	IncentivizationFeeAmount uint64

	// DBEnabled toggles the persistence layer; without it the query API
	// serves live pool state only.
	DBEnabled bool
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	WebPort, err = getEnv("WEB_PORT")
	if err != nil {
		return err
	}

	OwnerAddr, err = getEnv("OWNER_ADDR")
	if err != nil {
		return err
	}

	GuardianAddr, err = getEnv("GUARDIAN_ADDR")
	if err != nil {
		return err
	}

	FactoryAddr, err = getEnv("FACTORY_ADDR")
	if err != nil {
		return err
	}

	MakerAddr, err = getEnv("MAKER_ADDR")
	if err != nil {
		return err
	}

	VestingAddr, err = getEnv("VESTING_ADDR")
	if err != nil {
		return err
	}

	EmissionDenom, err = getEnv("EMISSION_DENOM")
	if err != nil {
		return err
	}

	TokensPerSecond, err = getEnv("EMISSION_TOKENS_PER_SECOND")
	if err != nil {
		return err
	}

	IncentivizationFeeDenom, err = getEnv("INCENTIVIZATION_FEE_DENOM")
	if err != nil {
		return err
	}

	IncentivizationFeeAmount, err = getEnvAsUint64("INCENTIVIZATION_FEE_AMOUNT")
	if err != nil {
		return err
	}

	DBEnabled, err = getEnvAsBool("DB_ENABLED")
	if err != nil {
		return err
	}

	if DBEnabled {
		if err := loadDatabaseConfig(); err != nil {
			return err
		}
	}

	log.Debug().
		Str("WebPort", WebPort).
		Str("FactoryAddr", FactoryAddr).
		Str("EmissionDenom", EmissionDenom).
		Bool("DBEnabled", DBEnabled).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBool retrieves an environment variable as a bool. Returns error if not set or invalid.
func getEnvAsBool(key string) (bool, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}
