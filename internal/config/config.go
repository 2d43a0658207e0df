package config

import "time"

type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Power     PowerConfig     `yaml:"power"`
	Workload  WorkloadConfig  `yaml:"workload"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Results   ResultsConfig   `yaml:"results"`
	Clock     ClockConfig     `yaml:"clock"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type SessionConfig struct {
	// App is the workload kind: hplai or hpl.
	App        string `yaml:"app"`
	Iterations int    `yaml:"iterations"`
	QuickTest  bool   `yaml:"quicktest"`
	Warmup     bool   `yaml:"warmup"`
	OutputDir  string `yaml:"output_dir"`
	// SettleDelayMS is the wait after the workload exits so that the
	// last power samples land in the meter logs before they are read.
	SettleDelayMS int `yaml:"settle_delay_ms"`
	// ParseFailureScore is the score recorded when the workload output
	// cannot be parsed.
	ParseFailureScore float64 `yaml:"parse_failure_score"`
}

type HardwareConfig struct {
	// DryRun logs frequency changes instead of executing them.
	DryRun bool      `yaml:"dry_run"`
	Sudo   bool      `yaml:"sudo"`
	CPU    CPUConfig `yaml:"cpu"`
	GPU    GPUConfig `yaml:"gpu"`
}

type CPUConfig struct {
	MinGHz         float64 `yaml:"min_ghz"`
	MaxGHz         float64 `yaml:"max_ghz"`
	StepMHz        int     `yaml:"step_mhz"`
	ManualGovernor string  `yaml:"manual_governor"`
	AutoGovernor   string  `yaml:"auto_governor"`
}

type GPUConfig struct {
	MinGHz float64 `yaml:"min_ghz"`
	MaxGHz float64 `yaml:"max_ghz"`
	// StepsMHz are applied in turn when generating the legal clock list.
	StepsMHz    []int `yaml:"steps_mhz"`
	MemClockMHz int   `yaml:"mem_clock_mhz"`
}

type PowerConfig struct {
	IntervalMS    int           `yaml:"interval_ms"`
	StopTimeoutMS int           `yaml:"stop_timeout_ms"`
	ReadTimeoutMS int           `yaml:"read_timeout_ms"`
	Meters        []MeterConfig `yaml:"meters"`
}

type MeterConfig struct {
	Name string `yaml:"name"`
	// Type is snmp or static.
	Type      string  `yaml:"type"`
	Address   string  `yaml:"address"`
	Port      int     `yaml:"port"`
	Community string  `yaml:"community"`
	OID       string  `yaml:"oid"`
	Version   string  `yaml:"version"`
	Scale     float64 `yaml:"scale"`
	Retries   int     `yaml:"retries"`
	// Watts is the constant reading of a static meter.
	Watts float64 `yaml:"watts"`
}

type WorkloadConfig struct {
	N            int    `yaml:"n"`
	NB           int    `yaml:"nb"`
	TimingPrefix string `yaml:"timing_prefix"`
	// TimestampOffsetHours is added to every timing marker of the
	// workload output; the benchmark logs in a different zone than the
	// power meters.
	TimestampOffsetHours float64            `yaml:"timestamp_offset_hours"`
	Docker               bool               `yaml:"docker"`
	MountOutput          bool               `yaml:"mount_output"`
	Apps                 map[string]AppSpec `yaml:"apps"`
}

type AppSpec struct {
	Image  string `yaml:"image"`
	Binary string `yaml:"binary"`
	// Command overrides the generated command line. {N} and {NB} are
	// replaced with the problem size and block size.
	Command string `yaml:"command"`
}

type OptimizerConfig struct {
	// Seeds is corners or random.
	Seeds      string       `yaml:"seeds"`
	SeedPoints [][2]float64 `yaml:"seed_points"`
	PreSamples int          `yaml:"pre_samples"`
	// Strategy is multistart or random.
	Strategy     string  `yaml:"strategy"`
	Restarts     int     `yaml:"restarts"`
	RandomSearch int     `yaml:"random_search"`
	Alpha        float64 `yaml:"alpha"`
	Nu           float64 `yaml:"nu"`
	FitRestarts  int     `yaml:"fit_restarts"`
	RandomSeed   uint64  `yaml:"random_seed"`
}

type ResultsConfig struct {
	// MySQLDSN enables the database sink when set.
	MySQLDSN   string `yaml:"mysql_dsn"`
	MySQLTable string `yaml:"mysql_table"`
	Summary    bool   `yaml:"summary"`
}

type ClockConfig struct {
	// NTPServer enables the clock skew check at session start.
	NTPServer string `yaml:"ntp_server"`
	TimeoutMS int    `yaml:"timeout_ms"`
	MaxSkewMS int    `yaml:"max_skew_ms"`
}

type ServerConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Session.SettleDelayMS) * time.Millisecond
}

func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Power.IntervalMS) * time.Millisecond
}

func (c *Config) SamplerStopTimeout() time.Duration {
	return time.Duration(c.Power.StopTimeoutMS) * time.Millisecond
}

func (c *Config) MeterReadTimeout() time.Duration {
	return time.Duration(c.Power.ReadTimeoutMS) * time.Millisecond
}

func (c *Config) TimestampOffset() time.Duration {
	return time.Duration(c.Workload.TimestampOffsetHours * float64(time.Hour))
}

func (c *Config) ClockTimeout() time.Duration {
	return time.Duration(c.Clock.TimeoutMS) * time.Millisecond
}

func (c *Config) MaxClockSkew() time.Duration {
	return time.Duration(c.Clock.MaxSkewMS) * time.Millisecond
}
