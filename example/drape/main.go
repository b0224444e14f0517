// Command drape drops a square cloth panel over a sphere. Without a listen
// address it runs headless and logs the state of the panel, otherwise every
// websocket client receives its own simulation as a stream of JSON frames.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/akmonengine/silk"
	"github.com/akmonengine/silk/actor"
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"gopkg.in/gcfg.v1"
)

// SceneConfig is the gcfg document describing the scene.
type SceneConfig struct {
	Scene struct {
		Resolution   int
		Size         float64
		Height       float64
		SphereRadius float64
		PinCorners   bool
		Steps        int
		TimeStep     float64
	}
	Output struct {
		Listen string
		// Milliseconds between two frames sent to a client
		FrameInterval int
	}
}

func defaultScene() SceneConfig {
	var s SceneConfig
	s.Scene.Resolution = 16
	s.Scene.Size = 1
	s.Scene.Height = 0.5
	s.Scene.SphereRadius = 0.25
	s.Scene.Steps = 240
	s.Scene.TimeStep = 1.0 / 60.0
	s.Output.FrameInterval = 16
	return s
}

func (s *SceneConfig) check() error {
	if s.Scene.Resolution < 1 {
		return fmt.Errorf("scene.resolution must be at least 1, got %d", s.Scene.Resolution)
	}
	if s.Scene.Size <= 0 || s.Scene.SphereRadius <= 0 {
		return errors.New("scene.size and scene.sphereradius must be positive")
	}
	if s.Scene.TimeStep <= 0 {
		return fmt.Errorf("scene.timestep must be positive, got %g", s.Scene.TimeStep)
	}
	return nil
}

// drape is one simulation of the scene.
type drape struct {
	evolution *silk.Evolution
	offset    int
	count     int
}

func newDrape(scene SceneConfig, cfg *config.Config) *drape {
	e := silk.NewEvolution(cfg.Solver)

	size := scene.Scene.Size
	grid := mesh.NewGrid(scene.Scene.Resolution, scene.Scene.Resolution, size, size)
	offset := e.AddParticleRange(len(grid.Positions), 0, true)
	p := e.Particles()
	center := mgl64.Vec3{size / 2, 0, size / 2}
	for i, x := range grid.Positions {
		p.Reset(offset+i, x.Sub(center).Add(mgl64.Vec3{0, scene.Scene.Height, 0}))
	}

	m := mesh.NewTriangleMesh(grid.Offset(offset), offset, len(grid.Positions))
	silk.AssignMasses(p, m, cfg.Cloth.Density)
	if scene.Scene.PinCorners {
		res := scene.Scene.Resolution
		for _, corner := range []int{0, res, (res + 1) * res, (res+1)*(res+1) - 1} {
			p.SetMass(offset+corner, 0)
		}
	}

	e.AddCollider(actor.NewCollider(actor.NewTransform(), &actor.Sphere{Radius: scene.Scene.SphereRadius}))
	e.AddCollider(actor.NewCollider(actor.NewTransform(), &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}, Distance: scene.Scene.SphereRadius}))

	cloth := silk.NewClothConstraints(e, p.Range(offset, len(grid.Positions)), m, cfg.Cloth, nil, silk.ClothInput{Pattern: grid.Pattern})
	cloth.CreateRules()
	slog.Info("cloth created",
		"particles", len(grid.Positions),
		"triangles", len(grid.Triangles),
		"edges", cloth.EdgeVariant(),
		"bending", cloth.BendingVariant(),
		"area", cloth.AreaVariant(),
	)

	return &drape{evolution: e, offset: offset, count: len(grid.Positions)}
}

// Frame is the JSON message streamed to the clients.
type Frame struct {
	Step      int          `json:"step"`
	Time      float64      `json:"time"`
	Positions [][3]float64 `json:"positions"`
}

func (d *drape) frame(step int) Frame {
	p := d.evolution.Particles()
	f := Frame{Step: step, Time: d.evolution.Time(), Positions: make([][3]float64, d.count)}
	for i := range d.count {
		f.Positions[i] = p.Position(d.offset + i)
	}
	return f
}

// heights returns the height of the lowest particle and of the panel center.
func (d *drape) heights() (lowest, center float64) {
	p := d.evolution.Particles()
	lowest = p.Position(d.offset).Y()
	for i := range d.count {
		lowest = min(lowest, p.Position(d.offset+i).Y())
	}
	return lowest, p.Position(d.offset + d.count/2).Y()
}

func runHeadless(scene SceneConfig, cfg *config.Config) {
	d := newDrape(scene, cfg)
	start := time.Now()
	for step := 1; step <= scene.Scene.Steps; step++ {
		d.evolution.AdvanceOneTimeStep(scene.Scene.TimeStep)
		if step%60 == 0 {
			lowest, center := d.heights()
			slog.Info("step", "step", step, "time", d.evolution.Time(), "lowest", lowest, "center", center)
		}
	}
	slog.Info("simulation done", "steps", scene.Scene.Steps, "elapsed", time.Since(start))
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func serve(scene SceneConfig, cfg *config.Config) error {
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade", "err", err)
			return
		}
		defer ws.Close()
		stream(ws, scene, cfg)
	})
	slog.Info("listening", "address", scene.Output.Listen)
	return http.ListenAndServe(scene.Output.Listen, nil)
}

// stream runs a new simulation and sends one frame per step until the client
// leaves or the scene ends.
func stream(ws *websocket.Conn, scene SceneConfig, cfg *config.Config) {
	d := newDrape(scene, cfg)
	ticker := time.NewTicker(time.Duration(scene.Output.FrameInterval) * time.Millisecond)
	defer ticker.Stop()

	if err := ws.WriteJSON(d.frame(0)); err != nil {
		slog.Warn("websocket write", "err", err)
		return
	}
	for step := 1; step <= scene.Scene.Steps; step++ {
		<-ticker.C
		d.evolution.AdvanceOneTimeStep(scene.Scene.TimeStep)
		if err := ws.WriteJSON(d.frame(step)); err != nil {
			slog.Info("client left", "remote", ws.RemoteAddr(), "err", err)
			return
		}
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func main() {
	var scenePath, configPath string
	var verbose bool
	flag.StringVar(&scenePath, "scene", "", "gcfg scene file")
	flag.StringVar(&configPath, "config", "", "TOML or YAML cloth configuration")
	flag.BoolVar(&verbose, "v", false, "debug logs")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	scene := defaultScene()
	if scenePath != "" {
		if err := gcfg.ReadFileInto(&scene, scenePath); err != nil {
			slog.Error("reading scene", "path", scenePath, "err", err)
			os.Exit(1)
		}
	}
	if err := scene.check(); err != nil {
		slog.Error("invalid scene", "err", err)
		os.Exit(1)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			slog.Error("loading configuration", "err", err)
			os.Exit(1)
		}
	}

	if scene.Output.Listen == "" {
		runHeadless(scene, cfg)
		return
	}
	if err := serve(scene, cfg); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
