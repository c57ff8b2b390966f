package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/extract"
	"clipforge/internal/localize"
	"clipforge/internal/logging"
	"clipforge/internal/moments"
	"clipforge/internal/moments/llmscore"
	"clipforge/internal/operations"
	"clipforge/internal/services/llm"
)

type commandContext struct {
	configFlag *string
	cfg        *config.Config
	cfgPath    string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = resolvedPath
	return cfg, nil
}

// newLogger builds the process logger. A console format falls back to JSON
// when stderr is not a terminal so piped output stays machine-readable.
func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	format := cfg.Logging.Format
	if format == "console" && !isatty.IsTerminal(os.Stderr.Fd()) {
		format = "json"
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      format,
		OutputPaths: []string{"stderr"},
	})
}

// openService wires the full pipeline service. The returned closer releases
// the store.
func (c *commandContext) openService(logger *slog.Logger) (*api.Service, *operations.Store, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := operations.Open(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open registry: %w", err)
	}
	closer := func() {
		_ = store.Close()
	}

	extractor := extract.New(cfg, logger)
	selector := moments.NewSelector(c.newScorer(cfg, logger), logger)
	service := api.NewService(cfg, store, extractor, selector, logger)
	return service, store, closer, nil
}

func newLLMClient(cfg *config.Config) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
}

// newScorer prefers the LLM scorer and falls back to the heuristic one when
// no API key is configured.
func (c *commandContext) newScorer(cfg *config.Config, logger *slog.Logger) moments.Scorer {
	scorer, err := llmscore.New(newLLMClient(cfg))
	if err != nil {
		logger.Info("no llm credentials, using heuristic moment scoring")
		return moments.HeuristicScorer{}
	}
	return scorer
}

// newTranslator prefers the LLM translator and falls back to validated
// passthrough when no API key is configured.
func (c *commandContext) newTranslator(cfg *config.Config, logger *slog.Logger) localize.Translator {
	translator, err := localize.NewLLMTranslator(newLLMClient(cfg))
	if err != nil {
		logger.Warn("no llm credentials, captions will not be translated")
		return localize.Passthrough{}
	}
	return translator
}
