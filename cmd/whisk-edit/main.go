// whisk-edit is the interactive driver for whisker trajectory editing.
// It loads a movie as a directory of grayscale frame images, restores
// any previously saved whisker data, and maps line commands on stdin to
// the tracing, assignment and navigation engine. The windowing layer is
// out of scope here; this command surface is what a GUI would call into.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	_ "modernc.org/sqlite"

	"github.com/elyall/whisk-1/whisk"
	"github.com/elyall/whisk-1/whiskio"
)

func main() {
	var (
		framesDir    = pflag.String("frames", "", "directory of grayscale frame images (required)")
		whiskersPath = pflag.String("whiskers", "", "whisker data file to load and save")
		measurePath  = pflag.String("measurements", "", "measurements file written on save")
		sessionDB    = pflag.String("session-db", "", "SQLite session database for autosave")
		transpose    = pflag.Bool("transpose", false, "transpose frames before tracing")
		startFrame   = pflag.Int("start-frame", 0, "frame to start at")
		radius       = pflag.Int("radius", 10, "initial cursor radius in pixels")
		showCursor   = pflag.Bool("show-cursor-position", false, "print the cursor position with status output")
		enableBias   = pflag.Bool("enable-line-bias", false, "correct odd-scanline intensity bias")
		disableBias  = pflag.Bool("disable-line-bias", false, "leave odd-scanline intensity bias untouched")
	)
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *framesDir == "" {
		logger.Error("--frames is required")
		os.Exit(2)
	}
	if *enableBias && *disableBias {
		logger.Error("--enable-line-bias and --disable-line-bias are mutually exclusive")
		os.Exit(2)
	}
	if *startFrame < 0 {
		logger.Error("--start-frame must be >= 0", "start-frame", *startFrame)
		os.Exit(2)
	}
	if *radius <= 0 {
		logger.Error("--radius must be positive", "radius", *radius)
		os.Exit(2)
	}

	src, err := openFrameDir(*framesDir)
	if err != nil {
		logger.Error("can't open frame directory", "dir", *framesDir, "err", err)
		os.Exit(1)
	}
	if *transpose {
		src = whisk.Transposed(src)
	}
	if *enableBias {
		src = whisk.BiasCorrected(src)
	}
	logger.Info("movie opened", "frames", src.FrameCount(), "transpose", *transpose)

	store, hint := loadSession(logger, src.FrameCount(), *whiskersPath, *sessionDB)

	session := whisk.Session{
		Frame:      clamp(*startFrame, 0, src.FrameCount()-1),
		Radius:     float64(*radius),
		Transpose:  *transpose,
		FaceHint:   hint,
		ShowCursor: *showCursor,
	}
	if ids := store.IDs(); len(ids) > 0 {
		session.TrajectoryID = ids[0]
	}

	app := &editor{
		logger:       logger,
		src:          src,
		store:        store,
		tracer:       whisk.NewTracer(),
		nav:          whisk.NewNavigator(store),
		session:      session,
		whiskersPath: *whiskersPath,
		measurePath:  *measurePath,
		sessionDB:    *sessionDB,
	}
	app.run()
}

func loadSession(logger *slog.Logger, frameCount int, whiskersPath, sessionDB string) (*whisk.TrajectoryStore, whisk.FaceHint) {
	if sessionDB != "" {
		if _, err := os.Stat(sessionDB); err == nil {
			ss, err := whiskio.OpenSessionStore(sessionDB)
			if err == nil {
				defer ss.Close()
				store, hint, err := ss.Load()
				if err == nil {
					logger.Info("session restored", "db", sessionDB, "trajectories", store.Len())
					return store, hint
				}
				logger.Warn("session database unreadable, trying whisker file", "err", err)
			} else {
				logger.Warn("can't open session database", "err", err)
			}
		}
	}
	if whiskersPath != "" {
		store, err := whiskio.LoadWhiskers(whiskersPath, frameCount)
		if err == nil {
			logger.Info("whiskers loaded", "file", whiskersPath, "trajectories", store.Len())
			return store, whisk.FaceUnset
		}
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("whisker file unreadable, starting empty", "file", whiskersPath, "err", err)
		}
	}
	return whisk.NewTrajectoryStore(frameCount), whisk.FaceUnset
}

type editor struct {
	logger  *slog.Logger
	src     whisk.FrameSource
	store   *whisk.TrajectoryStore
	tracer  *whisk.Tracer
	nav     *whisk.Navigator
	session whisk.Session

	// last seed/cursor point given to trace or assign, for status output
	cursor    whisk.Point
	hasCursor bool

	whiskersPath string
	measurePath  string
	sessionDB    string
}

func (ed *editor) run() {
	scanner := bufio.NewScanner(os.Stdin)
	ed.status()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ed.dispatch(strings.Fields(line)) {
			return
		}
		ed.status()
	}
}

// dispatch handles one command; returns true when the session should end.
func (ed *editor) dispatch(args []string) bool {
	cmd := args[0]
	switch cmd {
	case "start":
		ed.session = ed.nav.JumpStart(ed.session)
	case "end":
		ed.session = ed.nav.JumpEnd(ed.session)
	case "step":
		ed.step(args[1:])
	case "id+":
		ed.session = ed.nav.NextID(ed.session)
	case "id-":
		ed.session = ed.nav.PrevID(ed.session)
	case "gap-next", "gap-prev", "gap-next-any", "gap-prev-any":
		ed.seekGap(cmd)
	case "radius+":
		ed.session = ed.nav.GrowRadius(ed.session)
	case "radius-":
		ed.session = ed.nav.ShrinkRadius(ed.session)
	case "face":
		ed.session = ed.nav.CycleFaceHint(ed.session)
	case "delete":
		if err := ed.store.DeleteInFrame(ed.session.TrajectoryID, ed.session.Frame); err != nil {
			ed.logger.Error("delete failed", "err", err)
		}
	case "trace":
		ed.seedTrace(args[1:])
	case "assign":
		ed.assignOrClear(args[1:])
	case "auto":
		ed.runAuto()
	case "save":
		if err := ed.save(); err != nil {
			ed.logger.Error("save failed", "err", err)
		}
	case "exit":
		if err := ed.save(); err != nil {
			ed.logger.Error("save failed, session kept alive", "err", err)
			return false
		}
		return true
	case "quit":
		return true
	default:
		fmt.Println("commands: start end step id+ id- gap-next gap-prev gap-next-any gap-prev-any radius+ radius- face delete trace assign auto save exit quit")
	}
	return false
}

// step parses "step +|- [sca]" where s/c/a are the held modifier keys.
func (ed *editor) step(args []string) {
	dir := whisk.Forward
	var mods whisk.Modifier
	if len(args) > 0 && args[0] == "-" {
		dir = whisk.Backward
	}
	if len(args) > 1 {
		for _, r := range args[1] {
			switch r {
			case 's':
				mods |= whisk.ModShift
			case 'c':
				mods |= whisk.ModCtrl
			case 'a':
				mods |= whisk.ModAlt
			}
		}
	}
	ed.session = ed.nav.Step(ed.session, dir, mods)
}

func (ed *editor) seekGap(cmd string) {
	dir := whisk.Forward
	if strings.Contains(cmd, "prev") {
		dir = whisk.Backward
	}
	any := strings.HasSuffix(cmd, "any")
	next, found, err := ed.nav.SeekGap(ed.session, dir, any)
	if err != nil {
		ed.logger.Error("gap seek failed", "err", err)
		return
	}
	if !found {
		fmt.Println("no gap found")
		return
	}
	ed.session = next
}

func (ed *editor) seedTrace(args []string) {
	seed, ok := parsePoint(args)
	if !ok {
		fmt.Println("usage: trace <x> <y>")
		return
	}
	frame, err := ed.src.Frame(ed.session.Frame)
	if err != nil {
		ed.logger.Error("can't fetch frame", "frame", ed.session.Frame, "err", err)
		return
	}
	ed.cursor, ed.hasCursor = seed, true
	seg, err := ed.tracer.Trace(frame, seed, ed.session.Radius)
	if err != nil {
		fmt.Printf("trace failed: %v (retry with another seed or a larger radius)\n", err)
		return
	}
	if err := ed.store.Assign(ed.session.TrajectoryID, ed.session.Frame, seg); err != nil {
		ed.logger.Error("assign failed", "err", err)
		return
	}
	fmt.Printf("traced %d points, length %.1f px\n", seg.Len(), seg.Length())
}

// assignOrClear claims the segment under the cursor for the current
// trajectory, or clears the current trajectory's assignment in this
// frame when nothing is under the cursor.
func (ed *editor) assignOrClear(args []string) {
	p, ok := parsePoint(args)
	if !ok {
		fmt.Println("usage: assign <x> <y>")
		return
	}
	ed.cursor, ed.hasCursor = p, true
	seg, _, err := ed.store.FindNearestSegment(ed.session.Frame, p, ed.session.Radius)
	if err != nil {
		ed.logger.Error("segment lookup failed", "err", err)
		return
	}
	if seg == nil {
		if err := ed.store.Clear(ed.session.TrajectoryID, ed.session.Frame); err != nil {
			ed.logger.Error("clear failed", "err", err)
		}
		return
	}
	if err := ed.store.Assign(ed.session.TrajectoryID, ed.session.Frame, seg); err != nil {
		ed.logger.Error("assign failed", "err", err)
	}
}

// runAuto traces forward from the current frame until the ridge is lost,
// the movie ends, or the operator interrupts (SIGINT cancels between
// frames, never mid-trace).
func (ed *editor) runAuto() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	linker := whisk.NewAutoLinker(ed.store, ed.session.FaceHint)
	ed.session.AutoMode = true
	out, err := linker.RunAuto(ctx, ed.src, ed.tracer, ed.session)
	ed.session = out
	ed.session.AutoMode = false
	if err != nil {
		fmt.Printf("auto mode stopped: %v\n", err)
	}
}

func (ed *editor) save() error {
	records := ed.store.Records()
	if ed.whiskersPath != "" {
		if err := whiskio.SaveWhiskers(ed.whiskersPath, records); err != nil {
			return err
		}
		ed.logger.Info("whiskers saved", "file", ed.whiskersPath, "records", len(records))
	}
	if ed.measurePath != "" {
		ms := whisk.BuildMeasurements(ed.store, ed.session.FaceHint)
		if err := whiskio.SaveMeasurements(ed.measurePath, ms, ed.session.FaceHint); err != nil {
			return err
		}
		ed.logger.Info("measurements saved", "file", ed.measurePath, "records", len(ms))
	}
	if ed.sessionDB != "" {
		ss, err := whiskio.OpenSessionStore(ed.sessionDB)
		if err != nil {
			return err
		}
		defer ss.Close()
		if err := ss.Save(ed.store, ed.session.FaceHint); err != nil {
			return err
		}
		ed.logger.Info("session saved", "db", ed.sessionDB)
	}
	return nil
}

func (ed *editor) status() {
	fmt.Println(ed.statusLine())
}

func (ed *editor) statusLine() string {
	line := fmt.Sprintf("frame %d/%d  traj %d  radius %.0f  face %s",
		ed.session.Frame, ed.src.FrameCount()-1,
		ed.session.TrajectoryID, ed.session.Radius, ed.session.FaceHint)
	if ed.session.ShowCursor && ed.hasCursor {
		line += fmt.Sprintf("  cursor (%.0f, %.0f)", ed.cursor.X, ed.cursor.Y)
	}
	return line
}

func parsePoint(args []string) (whisk.Point, bool) {
	if len(args) != 2 {
		return whisk.Point{}, false
	}
	x, errX := strconv.ParseFloat(args[0], 64)
	y, errY := strconv.ParseFloat(args[1], 64)
	if errX != nil || errY != nil {
		return whisk.Point{}, false
	}
	return whisk.Point{X: x, Y: y}, true
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
