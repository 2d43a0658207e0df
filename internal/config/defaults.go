package config

func Default() *Config {
	return &Config{
		Session: SessionConfig{
			App:               "hplai",
			Iterations:        32,
			QuickTest:         false,
			Warmup:            true,
			OutputDir:         "output",
			SettleDelayMS:     3000,
			ParseFailureScore: 0,
		},
		Hardware: HardwareConfig{
			DryRun: false,
			Sudo:   true,
			CPU: CPUConfig{
				MinGHz:         1.2,
				MaxGHz:         2.2,
				StepMHz:        100,
				ManualGovernor: "userspace",
				AutoGovernor:   "ondemand",
			},
			GPU: GPUConfig{
				MinGHz:      0.135,
				MaxGHz:      1.440,
				StepsMHz:    []int{7, 8},
				MemClockMHz: 810,
			},
		},
		Power: PowerConfig{
			IntervalMS:    500,
			StopTimeoutMS: 5000,
			ReadTimeoutMS: 2000,
			Meters: []MeterConfig{
				defaultPDU("pdu0", "192.168.242.38"),
				defaultPDU("pdu1", "192.168.242.39"),
			},
		},
		Workload: WorkloadConfig{
			N:                    204800,
			NB:                   896,
			TimingPrefix:         "20",
			TimestampOffsetHours: 8,
			Docker:               true,
			MountOutput:          true,
			Apps: map[string]AppSpec{
				"hplai": {
					Image:  "nvcr.io/nvidia/hpc-benchmarks:21.4-hpl",
					Binary: "/opt/nvidia/hpl_mxp/xhpl_mxp",
				},
				"hpl": {
					Image:  "nvcr.io/nvidia/hpc-benchmarks:21.4-hpl",
					Binary: "/opt/nvidia/hpl/xhpl",
				},
			},
		},
		Optimizer: OptimizerConfig{
			Seeds:        "corners",
			PreSamples:   5,
			Strategy:     "multistart",
			Restarts:     100,
			RandomSearch: 1000,
			Alpha:        1e-5,
			Nu:           1.5,
			FitRestarts:  10,
		},
		Results: ResultsConfig{
			MySQLTable: "codvfs_results",
			Summary:    true,
		},
		Clock: ClockConfig{
			TimeoutMS: 5000,
			MaxSkewMS: 500,
		},
		Server: ServerConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9470,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 20,
				Burst:             40,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultPDU(name, address string) MeterConfig {
	return MeterConfig{
		Name:      name,
		Type:      "snmp",
		Address:   address,
		Port:      161,
		Community: "public",
		OID:       "1.3.6.1.4.1.23273.4.4.0",
		Version:   "1",
		Scale:     0.1,
		Retries:   1,
	}
}
