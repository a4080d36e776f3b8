package cli

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/rollcast/forecast"
	"github.com/YuminosukeSato/rollcast/pkg/errors"
)

// Configuration keys. Nested keys map to ROLLCAST_<SECTION>_<NAME> in the
// environment.
const (
	keyLogLevel        = "log.level"
	keyForecastMinLen  = "forecast.min_len"
	keyForecastPredPer = "forecast.pred_period"
	keyForecastWorkers = "forecast.workers"
	keyForecastMethod  = "forecast.method"
	keyTrainNIter      = "train.n_iter"
	keyTrainCV         = "train.cv"
	keyTrainSeed       = "train.seed"
	keyTrainNJobs      = "train.n_jobs"
)

const (
	defaultLogLevel = "info"
	configName      = "rollcast"
	envPrefix       = "ROLLCAST"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyForecastMinLen, forecast.DefaultMinLen)
	v.SetDefault(keyForecastPredPer, forecast.DefaultPredPeriod)
	v.SetDefault(keyForecastWorkers, 1)
	v.SetDefault(keyForecastMethod, "arima")
	v.SetDefault(keyTrainNIter, 0)
	v.SetDefault(keyTrainCV, 0)
	v.SetDefault(keyTrainSeed, 0)
	v.SetDefault(keyTrainNJobs, 1)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads cfgFile, or rollcast.yaml from the working directory
// when cfgFile is empty. A missing default file is not an error.
func loadConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config")
	}
	return nil
}

// Settings is the resolved configuration: defaults, then config file, then
// environment, then flags.
type Settings struct {
	LogLevel string

	MinLen     int
	PredPeriod int
	Workers    int
	Method     string

	NIter int
	CV    int
	Seed  uint64
	NJobs int
}

func (c *CLI) settings() Settings {
	return Settings{
		LogLevel:   c.v.GetString(keyLogLevel),
		MinLen:     c.v.GetInt(keyForecastMinLen),
		PredPeriod: c.v.GetInt(keyForecastPredPer),
		Workers:    c.v.GetInt(keyForecastWorkers),
		Method:     c.v.GetString(keyForecastMethod),
		NIter:      c.v.GetInt(keyTrainNIter),
		CV:         c.v.GetInt(keyTrainCV),
		Seed:       c.v.GetUint64(keyTrainSeed),
		NJobs:      c.v.GetInt(keyTrainNJobs),
	}
}
