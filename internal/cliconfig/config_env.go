package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (WIFISHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("WIFISHIP_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("username", os.Getenv("WIFISHIP_USERNAME"), &cfg.Username)
	s.setString("feed", os.Getenv("WIFISHIP_FEED"), &cfg.Feed)
	s.setString("auth-key", os.Getenv("WIFISHIP_AUTH_KEY"), &cfg.AuthKey)
	s.setString("transport", os.Getenv("WIFISHIP_TRANSPORT"), &cfg.Transport)
	s.setString("mqtt-broker", os.Getenv("WIFISHIP_MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("fix-policy", os.Getenv("WIFISHIP_FIX_POLICY"), &cfg.FixPolicy)
	s.setString("overflow-policy", os.Getenv("WIFISHIP_OVERFLOW_POLICY"), &cfg.OverflowPolicy)
	s.setString("gps-port", os.Getenv("WIFISHIP_GPS_PORT"), &cfg.GPSPort)
	s.setString("iface", os.Getenv("WIFISHIP_IFACE"), &cfg.Iface)
	s.setString("queue-backend", os.Getenv("WIFISHIP_QUEUE_BACKEND"), &cfg.QueueBackend)
	s.setString("queue-dir", os.Getenv("WIFISHIP_QUEUE_DIR"), &cfg.QueueDir)
	s.setString("led-pin", os.Getenv("WIFISHIP_LED_PIN"), &cfg.LEDPin)
	s.setString("log-level", os.Getenv("WIFISHIP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("WIFISHIP_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("cycle-period", os.Getenv("WIFISHIP_CYCLE_PERIOD"), &cfg.CyclePeriod); err != nil {
		return err
	}
	if err := s.setDuration("fix-timeout", os.Getenv("WIFISHIP_FIX_TIMEOUT"), &cfg.FixTimeout); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", os.Getenv("WIFISHIP_FLUSH_INTERVAL"), &cfg.FlushInterval); err != nil {
		return err
	}

	if err := s.setBytes("queue-max-bytes", os.Getenv("WIFISHIP_QUEUE_MAX_BYTES"), &cfg.QueueMaxBytes); err != nil {
		return err
	}
	if err := s.setBytes("queue-low-watermark", os.Getenv("WIFISHIP_QUEUE_LOW_WATERMARK"), &cfg.QueueLowWatermark); err != nil {
		return err
	}

	ints := []struct {
		flag string
		env  string
		dst  *int
	}{
		{"min-satellites", "WIFISHIP_MIN_SATELLITES", &cfg.MinSatellites},
		{"flush-threshold", "WIFISHIP_FLUSH_THRESHOLD", &cfg.FlushThreshold},
		{"max-payload-bytes", "WIFISHIP_MAX_PAYLOAD_BYTES", &cfg.MaxPayloadBytes},
		{"drain-limit", "WIFISHIP_DRAIN_LIMIT", &cfg.DrainLimit},
		{"max-pending-records", "WIFISHIP_MAX_PENDING_RECORDS", &cfg.MaxPendingRecords},
		{"gps-baud", "WIFISHIP_GPS_BAUD", &cfg.GPSBaud},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, os.Getenv(i.env), i.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("once", os.Getenv("WIFISHIP_ONCE"), &cfg.Once)

	return nil
}
