package compare

import "sort"

// Official book configurations. These are the reference parameter sets a
// reviewer compares a candidate backtest against.

// PresetNames returns the available official book names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the official book config for a name, or false when the
// name is unknown. The returned Config is a fresh copy; callers may load
// it into a session without aliasing.
func Preset(name string) (*Config, bool) {
	build, ok := presets[name]
	if !ok {
		return nil, false
	}
	return build(), true
}

var presets = map[string]func() *Config{
	"RC EDI": func() *Config {
		return bookConfig("Strategy_RC_EDI", "1h", 10000, 1.5, 3, 1.0, 2,
			advancedParams(25.0, 1.5, 2.0, 1.2, 1.8))
	},
	"RC AE": func() *Config {
		return bookConfig("Strategy_RC_AE", "4h", 15000, 2.0, 4, 1.5, 3,
			advancedParams(20.0, 1.8, 2.2, 1.5, 2.1))
	},
	"RC AEP": func() *Config {
		return bookConfig("Strategy_RC_AEP", "1d", 20000, 2.5, 5, 2.0, 1,
			advancedParams(15.0, 2.0, 2.5, 1.7, 2.3))
	},
}

func bookConfig(strategy, timeframe string, capital, risk float64, maxTrades int, leverage float64, version float64, advanced *Config) *Config {
	return NewConfig().
		Set("strategy", String(strategy)).
		Set("timeframe", String(timeframe)).
		Set("start_date", String("2023-01-01")).
		Set("end_date", String("2023-12-31")).
		Set("initial_capital", Number(capital)).
		Set("risk_percent", Number(risk)).
		Set("max_open_trades", Number(float64(maxTrades))).
		Set("leverage", Number(leverage)).
		Set("user", String("official")).
		Set("created_at", String("2024-01-15")).
		Set("version", Number(version)).
		Set("advanced_params", Nested(advanced))
}

func advancedParams(maxDrawdown, profitFactor, recoveryFactor, sharpe, sortino float64) *Config {
	return NewConfig().
		Set("max_drawdown", Number(maxDrawdown)).
		Set("profit_factor", Number(profitFactor)).
		Set("recovery_factor", Number(recoveryFactor)).
		Set("sharpe_ratio", Number(sharpe)).
		Set("sortino_ratio", Number(sortino))
}
