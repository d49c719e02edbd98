// Package sceneflow provides a top-level convenience entry point for embedding
// the narrative engine in-process with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/sceneflow"
//
//	e, err := sceneflow.New(sceneflow.WithSceneFile("scenes.yaml"), sceneflow.WithOpenAI("gpt-4o-mini"))
//	e, err := sceneflow.New(sceneflow.WithScenes(myScenes...), sceneflow.WithChooser(myChooser))
//
// Every store is in memory; use cmd/sceneflow for SQL or Redis backed
// deployments.
package sceneflow

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/llm"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/narrative/engine"
	"github.com/BaSui01/sceneflow/narrative/executor"
	"github.com/BaSui01/sceneflow/narrative/loop"
	"github.com/BaSui01/sceneflow/narrative/relation"
	"github.com/BaSui01/sceneflow/narrative/roles"
	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/narrative/seed"
)

// historyPerGroup bounds the in-memory execution history.
const historyPerGroup = 50

type options struct {
	scenes    []*scene.Scene
	sceneFile string
	chooser   director.Chooser
	model     string
	apiKey    string
	director  director.Config
	seeds     seed.Config
	engine    engine.Config
	observer  engine.Observer
	logger    *zap.Logger
}

// Option configures the engine created by [New].
type Option func(*options)

// WithScenes adds scenes to the catalog.
func WithScenes(scenes ...*scene.Scene) Option {
	return func(o *options) { o.scenes = append(o.scenes, scenes...) }
}

// WithSceneFile loads scenes from a YAML authoring file.
func WithSceneFile(path string) Option {
	return func(o *options) { o.sceneFile = path }
}

// WithChooser sets the scene chooser.
func WithChooser(c director.Chooser) Option {
	return func(o *options) { o.chooser = c }
}

// WithOpenAI uses an OpenAI chooser. API key from OPENAI_API_KEY env.
func WithOpenAI(model string) Option {
	return func(o *options) { o.model = model }
}

// WithAPIKey overrides the API key for [WithOpenAI].
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithDirectorConfig overrides the director tuning.
func WithDirectorConfig(cfg director.Config) Option {
	return func(o *options) { o.director = cfg }
}

// WithSeedConfig overrides the seed lifecycle tuning.
func WithSeedConfig(cfg seed.Config) Option {
	return func(o *options) { o.seeds = cfg }
}

// WithTensionDecay sets the amount removed per DecayTension pass.
func WithTensionDecay(amount float64) Option {
	return func(o *options) { o.engine.TensionDecay = amount }
}

// WithObserver sets the engine observer.
func WithObserver(obs engine.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates an [engine.Engine] backed by in-memory stores. A chooser must
// be given via [WithChooser] or [WithOpenAI].
func New(opts ...Option) (*engine.Engine, error) {
	o := &options{
		director: director.DefaultConfig(),
		seeds:    seed.DefaultConfig(),
		engine:   engine.DefaultConfig(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	scenes := append([]*scene.Scene(nil), o.scenes...)
	if o.sceneFile != "" {
		loaded, err := scene.LoadFile(o.sceneFile)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, loaded...)
	}

	chooser := o.chooser
	if chooser == nil {
		if o.model == "" {
			return nil, errors.New("sceneflow: a chooser is required, use WithChooser or WithOpenAI")
		}
		key := o.apiKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		c, err := llm.NewChooser(llm.Config{APIKey: key, Model: o.model}, o.logger)
		if err != nil {
			return nil, err
		}
		chooser = c
	}

	catalog := scene.NewCatalog(scene.NewMemoryStore(scenes...), o.logger)
	if err := catalog.Load(context.Background()); err != nil {
		return nil, err
	}
	seeds := seed.NewManager(seed.NewMemoryStore(), o.seeds, o.logger)
	relations := relation.NewTracker(relation.NewMemoryStore(), o.logger)

	dir := director.New(
		catalog,
		loop.NewDetector(loop.DefaultConfig(), o.logger),
		seeds,
		relations,
		roles.NewAssigner(relations, roles.DefaultWeights(), o.logger),
		chooser,
		o.director,
		o.logger,
	)

	return engine.New(engine.Components{
		Catalog:   catalog,
		Seeds:     seeds,
		Relations: relations,
		Director:  dir,
		Executor:  executor.NewExecutor(seeds, relations, executor.NewMemoryExecutionStore(historyPerGroup), o.logger),
		States:    director.NewMemoryStateStore(),
		Observer:  o.observer,
	}, o.engine, o.logger)
}
