package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/sirupsen/logrus"

	patchcorn "github.com/patchcorn/patchcorn/go"
	"github.com/patchcorn/patchcorn/go/arch"
	"github.com/patchcorn/patchcorn/go/arch/x86_64"
	"github.com/patchcorn/patchcorn/go/cpu/unicorn"
	"github.com/patchcorn/patchcorn/go/cpu/walker"
	"github.com/patchcorn/patchcorn/go/fix"
	"github.com/patchcorn/patchcorn/go/loader"
	"github.com/patchcorn/patchcorn/go/models"
	"github.com/patchcorn/patchcorn/go/models/cpu"
)

type builder interface {
	New() (cpu.Cpu, error)
}

// emulated targets, selected with -target
var targets = map[string]builder{
	"walker":  &walker.Builder{},
	"unicorn": &unicorn.Builder{},
}

// NewFlags returns a flag set whose usage line lists args after the options.
func NewFlags(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [options] %s\n\nOptions:\n", os.Args[0], name, args)
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(flags)
	}
	return fs
}

// OpenTarget loads a PE image or a snapshot into a fresh emulated target.
func OpenTarget(target, path string) (cpu.Cpu, models.Image, error) {
	var img models.Image
	b, ok := targets[target]
	if !ok {
		return nil, img, errors.Errorf("unknown target %q", target)
	}
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, img, errors.WithStack(err)
	}
	c, err := b.New()
	if err != nil {
		return nil, img, err
	}
	if models.IsSnapshot(p) {
		snap, err := models.LoadSnapshot(p)
		if err != nil {
			return nil, img, err
		}
		// the stack came with the snapshot
		return c, snap.Image, snap.Restore(c)
	}
	l, err := loader.Load(bytes.NewReader(p), filepath.Base(path))
	if err != nil {
		return nil, img, err
	}
	if _, err := arch.GetArch(l.Arch()); err != nil {
		return nil, img, err
	}
	if img, err = loader.Map(c, l); err != nil {
		return nil, img, err
	}
	if err := c.RegWrite(x86_64.RIP, l.Entry()); err != nil {
		return nil, img, err
	}
	_, err = patchcorn.MapStack(c)
	return c, img, err
}

// Session is the log file and configuration of one fix run.
type Session struct {
	Log        *logrus.Logger
	Sink       *models.LogSink
	Config     fix.Config
	ConfigPath string
}

// OpenSession truncates <dir>/<name>.log and loads <name>.ini from dir.
// Either failing is fatal to the caller. A 0x0 resolution is replaced with
// deskW x deskH when both are set, otherwise with the desktop size.
func OpenSession(name, dir string, level logrus.Level, deskW, deskH int) (*Session, error) {
	sink, err := models.OpenLogSink(filepath.Join(dir, name+".log"), models.DefaultLogLimit)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(sink)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})

	s := &Session{Log: log, Sink: sink}
	if info, err := host.Info(); err == nil {
		log.WithFields(logrus.Fields{
			"os":       info.OS,
			"platform": info.Platform,
			"version":  info.PlatformVersion,
			"arch":     info.KernelArch,
		}).Info("host")
	}
	s.Config, s.ConfigPath, err = fix.LoadConfig(name+".ini", dir)
	if err != nil {
		log.WithError(err).Error("config")
		sink.Close()
		return nil, err
	}
	log.WithField("path", s.ConfigPath).Info("config loaded")
	w, h, ok := deskW, deskH, deskW > 0 && deskH > 0
	if !ok {
		w, h, ok = desktopSize()
	}
	if ok && s.Config.Desktop(w, h) {
		log.WithFields(logrus.Fields{"width": w, "height": h}).Info("using desktop resolution")
	}
	s.Config.Log(log)
	return s, nil
}

func (s *Session) Close() error {
	return s.Sink.Close()
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints err to stderr, with a stacktrace if one was recorded.
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	var tracer stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			tracer = st
		}
	}
	if tracer == nil {
		return
	}
	// parse full path and method name for each stack frame
	var frames [][]string
	for _, f := range tracer.StackTrace() {
		fullpath := ""
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)

		tmp := strings.SplitN(fmt.Sprintf("%+s", f), "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			method = pathsplit[len(pathsplit)-1]
			fullpath = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, []string{fullpath, fileline, method})
		if method == "main.main" {
			break
		}
	}
	widths := make([]int, 3)
	for _, f := range frames {
		for i, s := range f {
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}
	for _, f := range frames {
		for i := 0; i < 2; i++ {
			if widths[i] > 0 {
				pad := strings.Repeat(" ", widths[i]-len(f[i]))
				fmt.Fprintf(os.Stderr, "%s%s | ", f[i], pad)
			}
		}
		fmt.Fprintf(os.Stderr, "%s()\n", f[2])
	}
}

// Exit prints err and exits 1.
func Exit(err error) {
	PrintError(err)
	os.Exit(1)
}
