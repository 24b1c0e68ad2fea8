package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/delaneydunne/joint-limlam-mocker/internal/api"
	"github.com/delaneydunne/joint-limlam-mocker/internal/halo"
	"github.com/delaneydunne/joint-limlam-mocker/internal/luminosity"
	"github.com/delaneydunne/joint-limlam-mocker/internal/stream"
)

// envFloat overwrites *dst with the parsed value of key, warning and keeping
// the default if the value is malformed.
func envFloat(logger *slog.Logger, key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = f
}

func envInt(logger *slog.Logger, key string, dst *int64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = n
}

func envBool(logger *slog.Logger, key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}

// envCoeffs parses a comma-separated coefficient list. An unset variable
// leaves the model defaults in place; an entry that is not a number is an
// error.
func envCoeffs(key string) ([]float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	var out []float64
	for i, s := range strings.Split(v, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d %q is not a number", key, i, strings.TrimSpace(s))
		}
		out = append(out, f)
	}
	return out, nil
}

func loadCullConfig(logger *slog.Logger) halo.CullConfig {
	cfg := halo.CullConfig{
		MinMass:    1e10,
		MassCutoff: 1e16,
		NuRest:     115.27,
		NuI:        34,
		NuF:        26,
		FovX:       1.5,
		FovY:       1.5,
	}

	envFloat(logger, "LIMLAM_MIN_MASS", &cfg.MinMass)
	envFloat(logger, "LIMLAM_MASS_CUTOFF", &cfg.MassCutoff)
	envFloat(logger, "LIMLAM_NU_REST", &cfg.NuRest)
	envFloat(logger, "LIMLAM_NU_I", &cfg.NuI)
	envFloat(logger, "LIMLAM_NU_F", &cfg.NuF)
	envFloat(logger, "LIMLAM_FOV_X", &cfg.FovX)
	envFloat(logger, "LIMLAM_FOV_Y", &cfg.FovY)

	logger.Info("cull config",
		"min_mass", cfg.MinMass,
		"mass_cutoff", cfg.MassCutoff,
		"nu_rest", cfg.NuRest,
		"nu_i", cfg.NuI,
		"nu_f", cfg.NuF,
		"fov_x", cfg.FovX,
		"fov_y", cfg.FovY,
	)

	return cfg
}

func loadLuminosityConfig(logger *slog.Logger) (luminosity.Config, error) {
	cfg := luminosity.DefaultConfig()
	var err error

	if v := os.Getenv("LIMLAM_MODEL"); v != "" {
		cfg.Model = luminosity.COModelName(v)
	}
	if cfg.COCoeffs.Values, err = envCoeffs("LIMLAM_CO_COEFFS"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("LIMLAM_CATALOG_MODEL"); v != "" {
		cfg.CatalogModel = luminosity.CatalogModelName(v)
	}
	if cfg.CatalogCoeffs.Values, err = envCoeffs("LIMLAM_CATALOG_COEFFS"); err != nil {
		return cfg, err
	}

	envFloat(logger, "LIMLAM_CODEX", &cfg.Codex)
	envFloat(logger, "LIMLAM_CATDEX", &cfg.Catdex)
	envFloat(logger, "LIMLAM_RHO", &cfg.Rho)
	envInt(logger, "LIMLAM_LUM_SEED", &cfg.Seed)
	envBool(logger, "LIMLAM_SAVE_SCATTERLESS", &cfg.SaveScatterless)

	logger.Info("luminosity config",
		"model", cfg.Model,
		"co_coeffs", cfg.COCoeffs.Values,
		"catalog_model", cfg.CatalogModel,
		"catalog_coeffs", cfg.CatalogCoeffs.Values,
		"codex", cfg.Codex,
		"catdex", cfg.Catdex,
		"rho", cfg.Rho,
		"seed", cfg.Seed,
		"save_scatterless", cfg.SaveScatterless,
	)

	return cfg, nil
}

// postConfig holds the optional catalog transforms run after the luminosity
// pipeline.
type postConfig struct {
	Observe     halo.ObservationConfig
	Velocity    halo.VelocityConfig
	Offset      halo.OffsetConfig
	ObserveOn   bool
	OffsetOn    bool
	VelocitySet bool
}

func loadPostConfig(logger *slog.Logger) postConfig {
	cfg := postConfig{
		Observe:  halo.ObservationConfig{Weight: halo.WeightLinear},
		Velocity: halo.VelocityConfig{ScaleFactor: 1, InclinationSeed: luminosity.DefaultSeed},
	}

	var vcatSeed int64 = 12345
	envInt(logger, "LIMLAM_VCAT_SEED", &vcatSeed)
	cfg.Observe.Seed = vcatSeed
	cfg.Offset.Seed = vcatSeed

	if v := os.Getenv("LIMLAM_LCAT_CUTOFF"); v != "" {
		cfg.ObserveOn = true
	}
	envFloat(logger, "LIMLAM_LCAT_CUTOFF", &cfg.Observe.LcatCutoff)
	var goal int64
	envInt(logger, "LIMLAM_GOAL_NOBJ", &goal)
	if goal > 0 {
		cfg.Observe.GoalNObj = int(goal)
		cfg.ObserveOn = true
	}
	if v := os.Getenv("LIMLAM_OBS_WEIGHT"); v != "" {
		cfg.Observe.Weight = v
	}

	if v := os.Getenv("LIMLAM_VELOCITY_ATTR"); v != "" {
		cfg.Velocity.Attr = v
		cfg.VelocitySet = true
	}
	envFloat(logger, "LIMLAM_VVIR_SCALE_FACTOR", &cfg.Velocity.ScaleFactor)
	envFloat(logger, "LIMLAM_VVIR_CUTOFF", &cfg.Velocity.Cutoff)
	envInt(logger, "LIMLAM_INCLINATION_SEED", &cfg.Velocity.InclinationSeed)

	if os.Getenv("LIMLAM_VCAT_OFFSET") != "" || os.Getenv("LIMLAM_VCAT_SCATTER") != "" {
		cfg.OffsetOn = true
	}
	envFloat(logger, "LIMLAM_VCAT_OFFSET", &cfg.Offset.Offset)
	envFloat(logger, "LIMLAM_VCAT_SCATTER", &cfg.Offset.Scatter)

	logger.Info("catalog transform config",
		"observation_cull", cfg.ObserveOn,
		"lcat_cutoff", cfg.Observe.LcatCutoff,
		"goal_nobj", cfg.Observe.GoalNObj,
		"obs_weight", cfg.Observe.Weight,
		"velocity_attr", cfg.Velocity.Attr,
		"vcat_offset", cfg.Offset.Offset,
		"vcat_scatter", cfg.Offset.Scatter,
		"vcat_seed", vcatSeed,
	)

	return cfg
}

type sfrConfig struct {
	Path        string // local path or http(s) URL
	Extrapolate bool
	Workers     int
}

func loadSFRConfig(logger *slog.Logger) sfrConfig {
	cfg := sfrConfig{Path: "tables/sfr_release.dat", Workers: runtime.NumCPU()}

	if v := os.Getenv("LIMLAM_SFR_TABLE"); v != "" {
		cfg.Path = v
	}
	envBool(logger, "LIMLAM_SFR_EXTRAPOLATE", &cfg.Extrapolate)
	workers := int64(cfg.Workers)
	envInt(logger, "LIMLAM_WORKERS", &workers)
	if workers > 0 {
		cfg.Workers = int(workers)
	} else {
		logger.Warn("LIMLAM_WORKERS must be positive, using default", "default", cfg.Workers)
	}

	logger.Info("sfr config", "path", cfg.Path, "extrapolate", cfg.Extrapolate, "workers", cfg.Workers)
	return cfg
}

func loadAuthConfig(logger *slog.Logger) (api.AuthConfig, error) {
	cfg := api.AuthConfig{}

	if v := os.Getenv("LIMLAM_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("LIMLAM_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("LIMLAM_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("LIMLAM_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.DefaultConfig()

	maxPerIP := int64(cfg.MaxConcurrentPerIP)
	envInt(logger, "LIMLAM_STREAM_MAX_PER_IP", &maxPerIP)
	if maxPerIP > 0 {
		cfg.MaxConcurrentPerIP = int(maxPerIP)
	} else {
		logger.Warn("LIMLAM_STREAM_MAX_PER_IP must be positive, using default", "default", cfg.MaxConcurrentPerIP)
	}
	maxTotal := int64(cfg.MaxTotal)
	envInt(logger, "LIMLAM_STREAM_MAX_TOTAL", &maxTotal)
	if maxTotal > 0 {
		cfg.MaxTotal = int(maxTotal)
	} else {
		logger.Warn("LIMLAM_STREAM_MAX_TOTAL must be positive, using default", "default", cfg.MaxTotal)
	}
	if cfg.MaxTotal < cfg.MaxConcurrentPerIP {
		logger.Warn("stream total cap below the per-IP cap, raising it", "max_total", cfg.MaxTotal, "max_per_ip", cfg.MaxConcurrentPerIP)
		cfg.MaxTotal = cfg.MaxConcurrentPerIP
	}
	if v := os.Getenv("LIMLAM_STREAM_POLL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			logger.Warn("invalid LIMLAM_STREAM_POLL value, using default", "value", v, "default", cfg.PollInterval)
		} else {
			cfg.PollInterval = d
		}
	}

	logger.Info("stream config",
		"max_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"poll_interval", cfg.PollInterval,
	)
	return cfg
}
