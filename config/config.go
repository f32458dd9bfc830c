package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pitabwire/frame/config"
)

// RouterConfig holds the tunables for the media routing engine: mixer
// slot sizing, rewrite tolerances, connector retry/dedupe limits, and
// gateway scoring weights. Transport-level concerns (STUN/TURN, SIP,
// signalling) are out of scope for this binary and carried by the
// surrounding platform, not here.
type RouterConfig struct {
	config.ConfigurationDefault

	// Audio mixer (C3, C9)
	AudioMixerSlots        int `envDefault:"3"   env:"AUDIO_MIXER_SLOTS"`
	AudioSwitchThresholdDb int `envDefault:"30"  env:"AUDIO_SWITCH_THRESHOLD_DB"`
	AudioSlotTimeoutMs     int `envDefault:"1000" env:"AUDIO_SLOT_TIMEOUT_MS"`

	// Seq/Ts rewriter (C1, C9)
	SeqRewriteTolerance int `envDefault:"1000" env:"SEQ_REWRITE_TOLERANCE"`
	TsRewriteTolerance  int `envDefault:"10"   env:"TS_REWRITE_TOLERANCE"`

	// Connector message queue / event handler (C10, C12)
	ConnectorMaxRetries       int `envDefault:"5"     env:"CONNECTOR_MAX_RETRIES"`
	ConnectorRetryBackoffMs   int `envDefault:"200"   env:"CONNECTOR_RETRY_BACKOFF_MS"`
	ConnectorDedupeCapacity   int `envDefault:"10000" env:"CONNECTOR_DEDUPE_CAPACITY"`
	ConnectorCircuitThreshold int `envDefault:"5"     env:"CONNECTOR_CIRCUIT_FAIL_THRESHOLD"`

	// Gateway store/selector (C11)
	NodeTimeoutMs          int     `envDefault:"10000" env:"GATEWAY_NODE_TIMEOUT_MS"`
	GatewayZoneScoreWeight float64 `envDefault:"1"     env:"GATEWAY_ZONE_SCORE_WEIGHT"`
	GatewayLoadScoreWeight float64 `envDefault:"50"    env:"GATEWAY_LOAD_SCORE_WEIGHT"`
	GatewayMaxCPUPercent   int     `envDefault:"80"    env:"GATEWAY_MAX_CPU_PERCENT"`
	GatewayMaxMemPercent   int     `envDefault:"80"    env:"GATEWAY_MAX_MEM_PERCENT"`
	GatewayMaxDiskPercent  int     `envDefault:"80"    env:"GATEWAY_MAX_DISK_PERCENT"`

	// Room (C8)
	MaxPublishersPerRoom int `envDefault:"100" env:"MAX_PUBLISHERS_PER_ROOM"`

	// ConfigFilePath, when set, is watched for writes; cmd/router logs a
	// change and does not reload the tunables in-process. See WatchFile.
	ConfigFilePath string `envDefault:"" env:"CONFIG_FILE_PATH"`
}

// WatchFile starts watching path (a mounted config file, e.g. a
// Kubernetes ConfigMap volume) and calls onChange whenever it's
// written, letting the caller reload a fresh RouterConfig without a
// process restart. The watcher runs until the returned watcher is closed.
func WatchFile(path string, onChange func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return watcher, nil
}
