// Package config holds the process-wide, immutable-after-startup
// configuration for the manual search core: built-in defaults, overlaid by
// an optional YAML file, overlaid by MANUALDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is every tunable of the retrieval core.
type Config struct {
	TraceMaxKeep int `yaml:"trace_max_keep"`
	TraceTTLSec  int `yaml:"trace_ttl_sec"`

	SemCacheEnabled            bool   `yaml:"sem_cache_enabled"`
	SemCacheTTLSec             int    `yaml:"sem_cache_ttl_sec"`
	SemCacheMaxKeep            int    `yaml:"sem_cache_max_keep"`
	SemCacheEmbeddingProvider  string `yaml:"sem_cache_embedding_provider"`
	SemCacheMaxSummaryGap      int    `yaml:"sem_cache_max_summary_gap"`
	SemCacheMaxSummaryConflict int    `yaml:"sem_cache_max_summary_conflict"`

	SparseQueryCoverageWeight float64 `yaml:"sparse_query_coverage_weight"`
	LexicalCoverageWeight     float64 `yaml:"lexical_coverage_weight"`
	LexicalPhraseWeight       float64 `yaml:"lexical_phrase_weight"`
	LexicalNumberContextBonus float64 `yaml:"lexical_number_context_bonus"`
	LexicalProximityBonusNear float64 `yaml:"lexical_proximity_bonus_near"`
	LexicalProximityBonusFar  float64 `yaml:"lexical_proximity_bonus_far"`
	LexicalLengthPenaltyWeight float64 `yaml:"lexical_length_penalty_weight"`

	QueryDecompEnabled       bool    `yaml:"manual_find_query_decomp_enabled"`
	QueryDecompMaxSubQueries int     `yaml:"manual_find_query_decomp_max_sub_queries"`
	QueryDecompRRFK          int     `yaml:"manual_find_query_decomp_rrf_k"`
	QueryDecompBaseWeight    float64 `yaml:"manual_find_query_decomp_base_weight"`

	ScanHardCap         int     `yaml:"manual_find_scan_hard_cap"`
	PerFileCandidateCap int     `yaml:"manual_find_per_file_candidate_cap"`
	ExplorationRatio    float64 `yaml:"manual_find_exploration_ratio"`
	ExplorationScoreScale float64 `yaml:"manual_find_exploration_score_scale"`

	// DF guard thresholds: a required term in more than TooCommonRatio of
	// nodes is dropped; one in fewer than TooRareRatio is flagged but kept.
	RequiredTermTooCommonRatio float64 `yaml:"required_term_too_common_ratio"`
	RequiredTermTooRareRatio   float64 `yaml:"required_term_too_rare_ratio"`

	// Token-distance thresholds for the near and far proximity bonuses.
	ProximityNearTokens int `yaml:"proximity_near_tokens"`
	ProximityFarTokens  int `yaml:"proximity_far_tokens"`

	DiversityDecayAlpha float64 `yaml:"diversity_decay_alpha"`
	CutoffScoreRatio    float64 `yaml:"cutoff_score_ratio"`
	CutoffMinCoverage   float64 `yaml:"cutoff_min_coverage"`

	// RequiredTermSingleLambda weights idf(t) in the single-required-term
	// gate score (g0_score + lambda*idf(t)).
	RequiredTermSingleLambda float64 `yaml:"required_term_single_lambda"`

	// RequiredTermPassDepth truncates the per-term rankings fed into the
	// two-term required-terms RRF fuse.
	RequiredTermPassDepth int `yaml:"required_term_pass_depth"`

	ClaimGraphEnabled bool `yaml:"claim_graph_enabled"`

	AdaptiveStatsPath string `yaml:"adaptive_stats_path"`

	LogLevel    string `yaml:"log_level"`
	LogFilePath string `yaml:"log_file_path"`
}

// Default returns the built-in default configuration.
func Default() Config {
	return Config{
		TraceMaxKeep: 100,
		TraceTTLSec:  1800,

		SemCacheEnabled:            true,
		SemCacheTTLSec:             1800,
		SemCacheMaxKeep:            500,
		SemCacheEmbeddingProvider:  "none",
		SemCacheMaxSummaryGap:      -1,
		SemCacheMaxSummaryConflict: -1,

		SparseQueryCoverageWeight:  0.35,
		LexicalCoverageWeight:      0.50,
		LexicalPhraseWeight:        0.50,
		LexicalNumberContextBonus:  0.80,
		LexicalProximityBonusNear:  1.00,
		LexicalProximityBonusFar:   0.50,
		LexicalLengthPenaltyWeight: 0.20,

		QueryDecompEnabled:       true,
		QueryDecompMaxSubQueries: 3,
		QueryDecompRRFK:          60,
		QueryDecompBaseWeight:    0.30,

		ScanHardCap:           5000,
		PerFileCandidateCap:   8,
		ExplorationRatio:      0.20,
		ExplorationScoreScale: 0.50,

		// A term in more than 80% of nodes carries almost no
		// discriminative power; a term in fewer than 0.5% of nodes is
		// flagged (kept, not dropped) as likely a typo or a very sharp
		// anchor term.
		RequiredTermTooCommonRatio: 0.80,
		RequiredTermTooRareRatio:   0.005,

		ProximityNearTokens: 5,
		ProximityFarTokens:  15,

		RequiredTermSingleLambda: 1.0,
		RequiredTermPassDepth:    50,

		DiversityDecayAlpha: 0.50,
		CutoffScoreRatio:    0.20,
		CutoffMinCoverage:   0.15,

		ClaimGraphEnabled: false,

		AdaptiveStatsPath: "",

		LogLevel:    "info",
		LogFilePath: "",
	}
}

// Load layers a YAML file (if present) over Default(), then applies
// MANUALDEX_* environment variable overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideInt(&cfg.TraceMaxKeep, "MANUALDEX_TRACE_MAX_KEEP")
	overrideInt(&cfg.TraceTTLSec, "MANUALDEX_TRACE_TTL_SEC")
	overrideBool(&cfg.SemCacheEnabled, "MANUALDEX_SEM_CACHE_ENABLED")
	overrideInt(&cfg.SemCacheTTLSec, "MANUALDEX_SEM_CACHE_TTL_SEC")
	overrideInt(&cfg.SemCacheMaxKeep, "MANUALDEX_SEM_CACHE_MAX_KEEP")
	overrideString(&cfg.SemCacheEmbeddingProvider, "MANUALDEX_SEM_CACHE_EMBEDDING_PROVIDER")
	overrideInt(&cfg.SemCacheMaxSummaryGap, "MANUALDEX_SEM_CACHE_MAX_SUMMARY_GAP")
	overrideInt(&cfg.SemCacheMaxSummaryConflict, "MANUALDEX_SEM_CACHE_MAX_SUMMARY_CONFLICT")
	overrideFloat(&cfg.SparseQueryCoverageWeight, "MANUALDEX_SPARSE_QUERY_COVERAGE_WEIGHT")
	overrideFloat(&cfg.LexicalCoverageWeight, "MANUALDEX_LEXICAL_COVERAGE_WEIGHT")
	overrideFloat(&cfg.LexicalPhraseWeight, "MANUALDEX_LEXICAL_PHRASE_WEIGHT")
	overrideFloat(&cfg.LexicalNumberContextBonus, "MANUALDEX_LEXICAL_NUMBER_CONTEXT_BONUS")
	overrideFloat(&cfg.LexicalProximityBonusNear, "MANUALDEX_LEXICAL_PROXIMITY_BONUS_NEAR")
	overrideFloat(&cfg.LexicalProximityBonusFar, "MANUALDEX_LEXICAL_PROXIMITY_BONUS_FAR")
	overrideFloat(&cfg.LexicalLengthPenaltyWeight, "MANUALDEX_LEXICAL_LENGTH_PENALTY_WEIGHT")
	overrideBool(&cfg.QueryDecompEnabled, "MANUALDEX_QUERY_DECOMP_ENABLED")
	overrideInt(&cfg.QueryDecompMaxSubQueries, "MANUALDEX_QUERY_DECOMP_MAX_SUB_QUERIES")
	overrideInt(&cfg.QueryDecompRRFK, "MANUALDEX_QUERY_DECOMP_RRF_K")
	overrideFloat(&cfg.QueryDecompBaseWeight, "MANUALDEX_QUERY_DECOMP_BASE_WEIGHT")
	overrideInt(&cfg.ScanHardCap, "MANUALDEX_SCAN_HARD_CAP")
	overrideInt(&cfg.PerFileCandidateCap, "MANUALDEX_PER_FILE_CANDIDATE_CAP")
	overrideFloat(&cfg.ExplorationRatio, "MANUALDEX_EXPLORATION_RATIO")
	overrideString(&cfg.AdaptiveStatsPath, "MANUALDEX_ADAPTIVE_STATS_PATH")
	overrideString(&cfg.LogLevel, "MANUALDEX_LOG_LEVEL")
	overrideString(&cfg.LogFilePath, "MANUALDEX_LOG_FILE_PATH")
}

func overrideString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func overrideInt(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(dst *float64, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func overrideBool(dst *bool, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

// Validate rejects configurations that would make the pipeline's invariants
// unsatisfiable.
func (c Config) Validate() error {
	if c.TraceMaxKeep <= 0 {
		return fmt.Errorf("config: trace_max_keep must be positive")
	}
	if c.TraceTTLSec <= 0 {
		return fmt.Errorf("config: trace_ttl_sec must be positive")
	}
	if c.SemCacheMaxKeep <= 0 {
		return fmt.Errorf("config: sem_cache_max_keep must be positive")
	}
	if c.SemCacheEmbeddingProvider != "none" {
		return fmt.Errorf("config: sem_cache_embedding_provider: only %q is supported", "none")
	}
	if c.ScanHardCap <= 0 {
		return fmt.Errorf("config: manual_find_scan_hard_cap must be positive")
	}
	if c.QueryDecompMaxSubQueries < 0 {
		return fmt.Errorf("config: manual_find_query_decomp_max_sub_queries must be non-negative")
	}
	return nil
}
