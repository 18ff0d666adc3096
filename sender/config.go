package sender

import (
	"fmt"
	"time"

	"github.com/arloliu/go-gcode/logger"
	"github.com/arloliu/go-gcode/serialport"
)

const (
	// DefaultPollTimeout is the default read timeout of the I/O loop.
	DefaultPollTimeout = 50 * time.Millisecond
	// MinPollTimeout is the shortest accepted poll timeout.
	MinPollTimeout = time.Millisecond
	// MaxPollTimeout is the longest accepted poll timeout.
	MaxPollTimeout = time.Second

	// DefaultCloseTimeout is the default time Disconnect waits for the I/O loop.
	DefaultCloseTimeout = 3 * time.Second
	// MinCloseTimeout is the shortest accepted close timeout.
	MinCloseTimeout = 10 * time.Millisecond
	// MaxCloseTimeout is the longest accepted close timeout.
	MaxCloseTimeout = 60 * time.Second

	// DefaultQueueCapacity is the number of lines the outbound queue preallocates.
	DefaultQueueCapacity = 64
)

// InboundHandler receives every complete line read from the device, after the
// protocol handled it. It runs on the I/O loop goroutine and must not block.
type InboundHandler func(line string)

// Config holds the settings of a Sender. Create it with NewConfig.
type Config struct {
	// pollTimeout is the read timeout of each I/O loop iteration. It bounds how
	// long a posted close job waits before the loop picks it up.
	pollTimeout time.Duration

	// closeTimeout bounds how long Disconnect waits for the I/O loop to stop.
	closeTimeout time.Duration

	// queueCapacity is the initial capacity of the outbound queue.
	queueCapacity int

	opener           serialport.Opener
	baudConfigurator serialport.BaudConfigurator
	inboundHandler   InboundHandler
	logger           logger.Logger
}

// NewConfig creates a Config with default values and applies opts to it.
//
// Returns the config and the first error reported by an option.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		pollTimeout:      DefaultPollTimeout,
		closeTimeout:     DefaultCloseTimeout,
		queueCapacity:    DefaultQueueCapacity,
		opener:           serialport.Open,
		baudConfigurator: serialport.NewBaudConfigurator(),
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *Config) PollTimeout() time.Duration { return cfg.pollTimeout }

func (cfg *Config) CloseTimeout() time.Duration { return cfg.closeTimeout }

func (cfg *Config) QueueCapacity() int { return cfg.queueCapacity }

func (cfg *Config) Opener() serialport.Opener { return cfg.opener }

func (cfg *Config) BaudConfigurator() serialport.BaudConfigurator { return cfg.baudConfigurator }

func (cfg *Config) InboundHandler() InboundHandler { return cfg.inboundHandler }

func (cfg *Config) Logger() logger.Logger { return cfg.logger }

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return o.applyFunc(cfg)
}

func (o *optFunc) String() string { return o.name }

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithPollTimeout sets the read timeout of the I/O loop.
// It should be between MinPollTimeout and MaxPollTimeout.
func WithPollTimeout(d time.Duration) Option {
	return newOptFunc("WithPollTimeout", func(cfg *Config) error {
		if d < MinPollTimeout || d > MaxPollTimeout {
			return fmt.Errorf("%w: poll timeout %s not in [%s, %s]", ErrInvalidConfig, d, MinPollTimeout, MaxPollTimeout)
		}
		cfg.pollTimeout = d

		return nil
	})
}

// WithCloseTimeout sets how long Disconnect waits for the I/O loop to stop.
// It should be between MinCloseTimeout and MaxCloseTimeout.
func WithCloseTimeout(d time.Duration) Option {
	return newOptFunc("WithCloseTimeout", func(cfg *Config) error {
		if d < MinCloseTimeout || d > MaxCloseTimeout {
			return fmt.Errorf("%w: close timeout %s not in [%s, %s]", ErrInvalidConfig, d, MinCloseTimeout, MaxCloseTimeout)
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithQueueCapacity sets the initial capacity of the outbound queue. The queue
// grows past it as needed.
func WithQueueCapacity(n int) Option {
	return newOptFunc("WithQueueCapacity", func(cfg *Config) error {
		if n < 0 {
			return fmt.Errorf("%w: negative queue capacity %d", ErrInvalidConfig, n)
		}
		cfg.queueCapacity = n

		return nil
	})
}

// WithOpener replaces the function used to open the serial device.
func WithOpener(opener serialport.Opener) Option {
	return newOptFunc("WithOpener", func(cfg *Config) error {
		if opener == nil {
			return fmt.Errorf("%w: nil opener", ErrInvalidConfig)
		}
		cfg.opener = opener

		return nil
	})
}

// WithBaudConfigurator replaces the driver level baud rate fallback.
func WithBaudConfigurator(c serialport.BaudConfigurator) Option {
	return newOptFunc("WithBaudConfigurator", func(cfg *Config) error {
		if c == nil {
			return fmt.Errorf("%w: nil baud configurator", ErrInvalidConfig)
		}
		cfg.baudConfigurator = c

		return nil
	})
}

// WithInboundHandler sets the handler that receives every line read from the device.
func WithInboundHandler(h InboundHandler) Option {
	return newOptFunc("WithInboundHandler", func(cfg *Config) error {
		if h == nil {
			return fmt.Errorf("%w: nil inbound handler", ErrInvalidConfig)
		}
		cfg.inboundHandler = h

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidConfig)
		}
		cfg.logger = l

		return nil
	})
}
