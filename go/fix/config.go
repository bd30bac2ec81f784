package fix

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

const (
	MinWidth  = 640
	MaxWidth  = 15360
	MinHeight = 480
	MaxHeight = 8640
)

var ErrConfigMissing = errors.New("could not locate config file")

type Config struct {
	CustomRes bool
	// 0x0 means the desktop resolution
	Width, Height int

	FixAspect bool
	FixHUD    bool

	SkipWindowsMessage bool
}

func DefaultConfig() Config {
	return Config{Width: 1280, Height: 720, SkipWindowsMessage: true}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp forces the resolution into the supported range, leaving 0x0 alone.
func (c *Config) Clamp() {
	if c.UsesDesktop() {
		return
	}
	c.Width = clamp(c.Width, MinWidth, MaxWidth)
	c.Height = clamp(c.Height, MinHeight, MaxHeight)
}

func (c *Config) UsesDesktop() bool {
	return c.Width == 0 && c.Height == 0
}

// Desktop replaces a 0x0 resolution with the desktop size.
func (c *Config) Desktop(width, height int) bool {
	if !c.UsesDesktop() {
		return false
	}
	c.Width, c.Height = width, height
	c.Clamp()
	return true
}

func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	f, err := ini.Load(data)
	if err != nil {
		return c, errors.Wrap(err, "parsing config")
	}
	res := f.Section("Custom Resolution")
	c.CustomRes = res.Key("Enabled").MustBool(c.CustomRes)
	c.Width = res.Key("Width").MustInt(c.Width)
	c.Height = res.Key("Height").MustInt(c.Height)
	c.FixAspect = f.Section("Fix Aspect Ratio").Key("Enabled").MustBool(c.FixAspect)
	c.FixHUD = f.Section("Fix HUD").Key("Enabled").MustBool(c.FixHUD)
	c.SkipWindowsMessage = f.Section("Compatibility").Key("SkipWindowsMessage").MustBool(c.SkipWindowsMessage)
	c.Clamp()
	return c, nil
}

// LoadConfig looks for name in each of dirs, then in the user config folders.
// It returns the config and the path it came from.
func LoadConfig(name string, dirs ...string) (Config, string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if data, err := os.ReadFile(path); err == nil {
			c, err := ParseConfig(data)
			return c, path, err
		}
	}
	folder := configdir.New("patchcorn", "fix").QueryFolderContainsFile(name)
	if folder != nil {
		data, err := folder.ReadFile(name)
		if err != nil {
			return DefaultConfig(), "", errors.WithStack(err)
		}
		c, err := ParseConfig(data)
		return c, filepath.Join(folder.Path, name), err
	}
	return DefaultConfig(), "", errors.Wrapf(ErrConfigMissing, "%s not found in %v or the user config folder", name, dirs)
}

func (c Config) Log(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"customRes":          c.CustomRes,
		"width":              c.Width,
		"height":             c.Height,
		"fixAspect":          c.FixAspect,
		"fixHUD":             c.FixHUD,
		"skipWindowsMessage": c.SkipWindowsMessage,
	}).Info("config parsed")
}
