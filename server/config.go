package server

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/net/http/httpguts"
	"gopkg.in/ini.v1"
)

type Config struct {
	Port          int
	TimeoutMS     int // idle connection timeout, 0 disables eviction
	ThreadNum     int
	OpenLog       bool
	LogLevel      int
	LogQueueSize  int
	ResourcesDir  string
	LogDir        string
	CGIPath       string
	CGITimeout    time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxHeaderSize int
	// extra headers added to every response
	Headers         map[string]string
	EnableKeepAlive bool
	EnableLogging   bool
}

func DefaultConfig() *Config {
	return &Config{
		Port:            3000,
		TimeoutMS:       60000,
		ThreadNum:       6,
		OpenLog:         true,
		LogLevel:        1,
		LogQueueSize:    1024,
		ResourcesDir:    "./resources",
		LogDir:          "./log",
		CGIPath:         "./resources_cgi/auth.cgi",
		CGITimeout:      10 * time.Second,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		MaxHeaderSize:   8192,
		Headers:         map[string]string{},
		EnableKeepAlive: true,
		EnableLogging:   false,
	}
}

// IdleTimeout is TimeoutMS as a duration
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LoadINI overlays values from an ini file. Scalar keys live in [server],
// extra response headers in [headers]. Missing keys keep their value.
func (c *Config) LoadINI(path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	sec := f.Section("server")
	c.Port = sec.Key("port").MustInt(c.Port)
	c.TimeoutMS = sec.Key("timeout_ms").MustInt(c.TimeoutMS)
	c.ThreadNum = sec.Key("thread_num").MustInt(c.ThreadNum)
	c.OpenLog = sec.Key("open_log").MustBool(c.OpenLog)
	c.LogLevel = sec.Key("log_level").MustInt(c.LogLevel)
	c.LogQueueSize = sec.Key("log_queue_size").MustInt(c.LogQueueSize)
	c.ResourcesDir = sec.Key("resources_dir").MustString(c.ResourcesDir)
	c.LogDir = sec.Key("logs_dir").MustString(c.LogDir)
	c.CGIPath = sec.Key("cgi_path").MustString(c.CGIPath)
	c.CGITimeout = sec.Key("cgi_timeout").MustDuration(c.CGITimeout)
	c.ReadTimeout = sec.Key("read_timeout").MustDuration(c.ReadTimeout)
	c.WriteTimeout = sec.Key("write_timeout").MustDuration(c.WriteTimeout)
	c.MaxHeaderSize = sec.Key("max_header_size").MustInt(c.MaxHeaderSize)
	c.EnableKeepAlive = sec.Key("keep_alive").MustBool(c.EnableKeepAlive)
	c.EnableLogging = sec.Key("access_log").MustBool(c.EnableLogging)

	if f.HasSection("headers") {
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		for _, key := range f.Section("headers").Keys() {
			c.Headers[key.Name()] = key.Value()
		}
	}
	return nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d: must be in range 0-65535", c.Port))
	}
	if c.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("invalid timeoutMS %d: must be non-negative", c.TimeoutMS))
	}
	if c.ThreadNum <= 0 {
		errs = append(errs, fmt.Errorf("invalid threadNum %d: must be positive", c.ThreadNum))
	}
	if c.LogLevel < 0 || c.LogLevel > 3 {
		errs = append(errs, fmt.Errorf("invalid logLevel %d: valid levels 0(debug) to 3(error)", c.LogLevel))
	}
	if c.LogQueueSize < 0 {
		errs = append(errs, fmt.Errorf("invalid logQueueSize %d: must be non-negative", c.LogQueueSize))
	}
	if c.CGITimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid cgi timeout %v: must be non-negative", c.CGITimeout))
	}
	for k, v := range c.Headers {
		if !httpguts.ValidHeaderFieldName(k) {
			errs = append(errs, fmt.Errorf("invalid header name %q", k))
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			errs = append(errs, fmt.Errorf("invalid value for header %q", k))
		}
	}
	return errors.Join(errs...)
}
